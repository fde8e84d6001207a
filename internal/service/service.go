package service

import "context"

// ConceptExtractor turns a research-interest term into key concepts.
type ConceptExtractor interface {
	ExtractConcepts(ctx context.Context, term string) ([]string, error)
}

// Embedder produces the full-dimensional embedding of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Projector reduces a full embedding to two dimensions for plotting.
type Projector interface {
	Project(ctx context.Context, embedding []float32) ([2]float64, error)
}

// ProgressEvent is one best-effort progress update for a job.
type ProgressEvent struct {
	Status  string
	Message string
	Percent int
	Payload map[string]any
}

// Notifier delivers progress events. Implementations never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, jobID string, ev ProgressEvent)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, ProgressEvent) {}
