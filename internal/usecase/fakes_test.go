package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	requests []queue.EmbedRequest
	err      error
}

func (p *fakePublisher) PublishEmbedRequest(_ context.Context, req queue.EmbedRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, req)
	return nil
}

func (p *fakePublisher) published() []queue.EmbedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.EmbedRequest(nil), p.requests...)
}

type fakeExtractor struct {
	concepts []string
	err      error
	panics   bool
}

func (f fakeExtractor) ExtractConcepts(context.Context, string) ([]string, error) {
	if f.panics {
		panic("extractor exploded")
	}
	return f.concepts, f.err
}

type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	inputs []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	return f.vector, f.err
}

type fakeProjector struct {
	xy  [2]float64
	err error
}

func (f fakeProjector) Project(context.Context, []float32) ([2]float64, error) {
	return f.xy, f.err
}

// blockingProjector waits for the context, standing in for a hung service.
type blockingProjector struct{}

func (blockingProjector) Project(ctx context.Context, _ []float32) ([2]float64, error) {
	<-ctx.Done()
	return [2]float64{}, ctx.Err()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []service.ProgressEvent
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, ev service.ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) percents() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Percent
	}
	return out
}

func claimJob(t *testing.T, store repository.EmbeddingJobStore, id string) {
	t.Helper()
	ok, err := store.TryClaim(context.Background(), id, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

var errServiceDown = errors.New("service unavailable")
