package ingest

import "testing"

func TestComputeContentHashStable(t *testing.T) {
	a := ComputeContentHash("Acme recalled its flagship product today.")
	b := ComputeContentHash("Acme recalled its flagship product today.")

	if a != b {
		t.Error("identical content must hash identically")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestComputeContentHashIgnoresWhitespace(t *testing.T) {
	a := ComputeContentHash("Acme recalled   its flagship\nproduct today.")
	b := ComputeContentHash("  Acme recalled its flagship product today. ")

	if a != b {
		t.Error("whitespace variations must not defeat deduplication")
	}
}

func TestComputeContentHashDistinguishesContent(t *testing.T) {
	a := ComputeContentHash("Acme recalled its flagship product today.")
	b := ComputeContentHash("Acme shipped its flagship product today.")

	if a == b {
		t.Error("different content must hash differently")
	}
}
