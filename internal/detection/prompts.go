package detection

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/models"
)

// maxContentChars bounds how much ingestion text goes into one prompt, to
// stay under model token limits. Roughly 3k tokens at 4 chars per token.
const maxContentChars = 12000

const detectionSystemPrompt = `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object. Do not wrap it in markdown code blocks.

You are an analyst monitoring public conversation for emerging narratives that could affect a tracked organization or topic. Given one piece of content, identify any distinct narratives it contains. A narrative is a claim, story, or framing that could spread; routine factual coverage with no spread potential is not a narrative.

Output Format: Your response MUST be ONLY this exact JSON structure:
{
  "signals": [
    {
      "title": "Short headline naming the narrative (under 120 chars)",
      "category": "product|safety|financial|legal|leadership|social|other",
      "risk_level": "low|medium|high|critical",
      "momentum": "low|medium|high",
      "summary": "2-3 sentence summary of the narrative and who is pushing it",
      "key_points": ["point 1", "point 2"],
      "recommended_actions": ["action 1"],
      "confidence_score": 0.85
    }
  ]
}

Guidelines:
- Return "signals": [] when the content contains no emerging narrative. An empty list is a normal, expected answer.
- confidence_score is REQUIRED and must be a number between 0.0 and 1.0.
- momentum reflects how fast the narrative appears to be spreading based on the content alone.
- risk_level reflects potential reputational impact if the narrative spreads.
- Base everything on the content provided. Do not invent facts.`

// BuildDetectionPrompt assembles the user prompt for one ingestion.
func BuildDetectionPrompt(content string, sourceType models.SourceType) string {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	return fmt.Sprintf(`Analyze the following content for emerging narratives.

SOURCE TYPE: %s

CONTENT:
%s`, sourceType, content)
}

const momentumSystemPrompt = `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object. Do not wrap it in markdown code blocks.

You are an analyst re-assessing previously detected narratives against recent content. For each existing signal, judge whether the narrative is gaining or losing momentum based on how often and how prominently the recent content echoes it.

Output Format: Your response MUST be ONLY this exact JSON structure:
{
  "updates": [
    {
      "signal_id": "the id exactly as given",
      "status": "New|Accelerating|Stabilizing",
      "momentum": "low|medium|high",
      "supporting_ingestion_ids": ["ids of recent content items that echo this narrative"]
    }
  ]
}

Guidelines:
- Include an update ONLY for signals whose momentum or status should change, or that gained new supporting content.
- "Accelerating" means the narrative appears in more recent content than before; "Stabilizing" means it has plateaued or faded.
- supporting_ingestion_ids must come from the recent content list exactly as given. Use [] when none apply.
- Never invent signal or content ids.`

// momentumExcerptChars bounds the per-item excerpt in the momentum prompt.
const momentumExcerptChars = 400

// BuildMomentumPrompt assembles the aggregate context for momentum
// re-analysis: the open signals and the window's content excerpts.
func BuildMomentumPrompt(signals []models.Signal, ingestions []models.RawIngestion) string {
	var b strings.Builder

	b.WriteString("EXISTING SIGNALS:\n")
	for _, s := range signals {
		fmt.Fprintf(&b, "- id: %s\n  headline: %s\n  status: %s\n  momentum: %s\n  summary: %s\n",
			s.ID, s.Headline, s.Status, s.Momentum, s.Summary)
	}

	b.WriteString("\nRECENT CONTENT:\n")
	for _, ing := range ingestions {
		excerpt := ing.Content
		if len(excerpt) > momentumExcerptChars {
			excerpt = excerpt[:momentumExcerptChars]
		}
		fmt.Fprintf(&b, "- id: %s\n  scraped_at: %s\n  excerpt: %s\n",
			ing.ID, ing.ScrapedAt.Format("2006-01-02 15:04"), excerpt)
	}

	b.WriteString("\nReturn momentum updates for the signals above.")
	return b.String()
}
