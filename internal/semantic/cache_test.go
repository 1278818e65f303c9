package semantic

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// countingEmbedder counts Embed calls to observe cache behavior.
type countingEmbedder struct {
	inner Embedder
	mu    sync.Mutex
	calls int
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return nil, errors.New("provider down")
	}
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Close() error    { return c.inner.Close() }

func (c *countingEmbedder) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCachedEmbedderHit(t *testing.T) {
	counting := &countingEmbedder{inner: NewMockEmbedder(16)}
	cached := NewCachedEmbedder(counting, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hex nut")
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.Embed(ctx, "hex nut")
	if err != nil {
		t.Fatal(err)
	}
	if counting.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", counting.callCount())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs from original")
		}
	}
}

func TestCachedEmbedderEviction(t *testing.T) {
	counting := &countingEmbedder{inner: NewMockEmbedder(16)}
	cached := NewCachedEmbedder(counting, 2)
	ctx := context.Background()

	texts := []string{"a", "b", "c"}
	for _, s := range texts {
		if _, err := cached.Embed(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted; re-requesting it calls the provider again.
	if _, err := cached.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if counting.callCount() != 4 {
		t.Errorf("expected 4 provider calls, got %d", counting.callCount())
	}
	// "c" is still resident.
	if _, err := cached.Embed(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if counting.callCount() != 4 {
		t.Errorf("expected cached hit for resident key, got %d calls", counting.callCount())
	}
}

func TestCachedEmbedderErrorsNotCached(t *testing.T) {
	counting := &countingEmbedder{inner: NewMockEmbedder(16), fail: true}
	cached := NewCachedEmbedder(counting, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "hex nut"); err == nil {
		t.Fatal("expected provider error")
	}
	counting.mu.Lock()
	counting.fail = false
	counting.mu.Unlock()
	if _, err := cached.Embed(ctx, "hex nut"); err != nil {
		t.Fatalf("recovered provider should succeed: %v", err)
	}
	if counting.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", counting.callCount())
	}
}
