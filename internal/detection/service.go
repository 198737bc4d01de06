package detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/models"
)

// SignalStore persists signals and their evidence links.
type SignalStore interface {
	Create(ctx context.Context, signal *models.Signal) error
	CreateEvidence(ctx context.Context, link *models.EvidenceLink) error
	UpdateMomentum(ctx context.Context, id string, status models.SignalStatus, momentum models.Momentum) error
	ListByProjectSince(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Signal, error)
}

// IngestionStore reads pending content and settles analysis status.
type IngestionStore interface {
	MarkAnalyzed(ctx context.Context, id string, analyzedAt time.Time) error
	MarkAnalysisFailed(ctx context.Context, id string, errMsg string) error
	ListPendingByProject(ctx context.Context, projectID string, since time.Time, limit int) ([]models.RawIngestion, error)
	ListByProjectSince(ctx context.Context, projectID string, since time.Time, limit int) ([]models.RawIngestion, error)
}

// SourceGetter resolves an ingestion's source for type context in prompts.
type SourceGetter interface {
	GetByID(ctx context.Context, id string) (*models.Source, error)
}

// Observer counts detection outcomes for observability.
type Observer interface {
	RecordSignal(momentum string)
	RecordDetectionFailure()
}

// Batch limits for the periodic detection and momentum passes.
const (
	detectionBatchLimit    = 100
	momentumSignalLimit    = 50
	momentumIngestionLimit = 200
)

// Service turns pending ingestions into signals and re-assesses momentum.
// Model-output problems (malformed JSON, missing fields) are absorbed into
// the ingestion's analysis_failed status; only storage failures escape.
type Service struct {
	completer  Completer
	signals    SignalStore
	ingestions IngestionStore
	sources    SourceGetter
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a detection service. The observer may be nil.
func NewService(completer Completer, signals SignalStore, ingestions IngestionStore, sources SourceGetter, observer Observer, logger *slog.Logger) *Service {
	return &Service{
		completer:  completer,
		signals:    signals,
		ingestions: ingestions,
		sources:    sources,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

// DetectionSummary aggregates one batch detection pass.
type DetectionSummary struct {
	Examined int `json:"examined"`
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Signals  int `json:"signals_created"`
}

// Analyze runs signal detection for one freshly stored ingestion and settles
// its status. Detector and parse failures are recorded on the ingestion and
// do not surface as errors.
func (s *Service) Analyze(ctx context.Context, ing *models.RawIngestion) error {
	created, failed, err := s.analyzeOne(ctx, ing)
	if err != nil {
		return err
	}
	if failed {
		s.logger.Warn("ingestion analysis failed", "ingestion_id", ing.ID)
	} else {
		s.logger.Debug("ingestion analyzed", "ingestion_id", ing.ID, "signals", created)
	}
	return nil
}

// DetectSignals runs detection over a project's pending ingestions from a
// trailing window. It never errors for per-item detection trouble.
func (s *Service) DetectSignals(ctx context.Context, projectID string, lookbackHours int) (DetectionSummary, error) {
	since := s.now().Add(-time.Duration(lookbackHours) * time.Hour)

	pending, err := s.ingestions.ListPendingByProject(ctx, projectID, since, detectionBatchLimit)
	if err != nil {
		return DetectionSummary{}, fmt.Errorf("failed to list pending ingestions: %w", err)
	}

	var summary DetectionSummary
	for i := range pending {
		ing := pending[i]
		summary.Examined++

		created, failed, err := s.analyzeOne(ctx, &ing)
		if err != nil {
			return summary, err
		}
		if failed {
			summary.Failed++
			continue
		}
		summary.Analyzed++
		summary.Signals += created
	}

	s.logger.Info("detection pass complete",
		"project_id", projectID,
		"examined", summary.Examined,
		"analyzed", summary.Analyzed,
		"failed", summary.Failed,
		"signals", summary.Signals)

	return summary, nil
}

// analyzeOne detects signals for one ingestion and settles its status.
// Returns the number of signals created and whether the ingestion was marked
// failed. The returned error is storage-level only.
func (s *Service) analyzeOne(ctx context.Context, ing *models.RawIngestion) (int, bool, error) {
	detected, detectErr := s.detect(ctx, ing)
	if detectErr != nil {
		if err := s.ingestions.MarkAnalysisFailed(ctx, ing.ID, detectErr.Error()); err != nil {
			return 0, false, fmt.Errorf("failed to record analysis failure: %w", err)
		}
		if s.observer != nil {
			s.observer.RecordDetectionFailure()
		}
		s.logger.Warn("signal detection failed",
			"ingestion_id", ing.ID, "error", detectErr)
		return 0, true, nil
	}

	created := 0
	for _, d := range detected {
		if err := s.persistSignal(ctx, ing, d); err != nil {
			return created, false, err
		}
		created++
	}

	if err := s.ingestions.MarkAnalyzed(ctx, ing.ID, s.now()); err != nil {
		return created, false, fmt.Errorf("failed to mark ingestion analyzed: %w", err)
	}

	return created, false, nil
}

func (s *Service) detect(ctx context.Context, ing *models.RawIngestion) ([]DetectedSignal, error) {
	sourceType := models.SourceTypeArticle
	if source, err := s.sources.GetByID(ctx, ing.SourceID); err == nil && source != nil {
		sourceType = source.Type
	}

	raw, err := s.completer.Complete(ctx, "signal_detection",
		detectionSystemPrompt, BuildDetectionPrompt(ing.Content, sourceType))
	if err != nil {
		return nil, err
	}

	return ParseDetectorResponse(raw)
}

// persistSignal stores one detected narrative with its detected-type
// evidence link. A failed link leaves the signal in place but logs it as
// incomplete.
func (s *Service) persistSignal(ctx context.Context, ing *models.RawIngestion, d DetectedSignal) error {
	signal := &models.Signal{
		ProjectID:  ing.ProjectID,
		SourceID:   &ing.SourceID,
		Headline:   d.Title,
		Summary:    d.Summary,
		KeyPoints:  d.KeyPoints,
		Status:     models.SignalStatusNew,
		Momentum:   models.ParseMomentum(d.Momentum),
		RiskLevel:  models.ParseRiskLevel(d.RiskLevel),
		DetectedAt: s.now(),
		Metadata: models.SignalMetadata{
			ConfidenceScore:    d.ConfidenceScore,
			Category:           d.Category,
			RecommendedActions: d.RecommendedActions,
			Model:              s.completer.Model(),
		},
	}

	if err := s.signals.Create(ctx, signal); err != nil {
		return fmt.Errorf("failed to store signal: %w", err)
	}

	if s.observer != nil {
		s.observer.RecordSignal(string(signal.Momentum))
	}

	link := &models.EvidenceLink{
		SignalID:    signal.ID,
		IngestionID: ing.ID,
		Type:        models.EvidenceTypeDetected,
	}
	if err := s.signals.CreateEvidence(ctx, link); err != nil {
		s.logger.Warn("signal persisted without evidence link",
			"signal_id", signal.ID, "ingestion_id", ing.ID, "error", err)
	}

	return nil
}
