package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClient struct {
	text  string
	err   error
	calls int
}

func (f *fakeClient) Chat(ctx context.Context, req Request) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{Text: f.text}, nil
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	t.Parallel()
	first := &fakeClient{err: errors.New("down")}
	second := &fakeClient{text: "hola"}
	third := &fakeClient{text: "never"}
	c := &Chain{
		Steps: []Step{
			{Name: "primary", Client: first},
			{Name: "local", Client: second},
			{Name: "secondary", Client: third},
		},
		RetryDelay: time.Millisecond,
	}
	text, provider, err := c.Generate(context.Background(), nil, 300)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "hola" || provider != "local" {
		t.Fatalf("Generate() = (%q, %q), want (hola, local)", text, provider)
	}
	if third.calls != 0 {
		t.Fatalf("third provider calls = %d, want 0", third.calls)
	}
}

func TestChainRetriesPrimaryOnce(t *testing.T) {
	t.Parallel()
	primary := &fakeClient{err: errors.New("down")}
	c := &Chain{
		Steps:      []Step{{Name: "primary", Client: primary}},
		RetryDelay: time.Millisecond,
		Fallbacks:  []string{"linea fija"},
		pick:       func(int) int { return 0 },
	}
	text, provider, err := c.Generate(context.Background(), nil, 300)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("primary calls = %d, want 2", primary.calls)
	}
	if text != "linea fija" || provider != FallbackProvider {
		t.Fatalf("Generate() = (%q, %q), want fallback line", text, provider)
	}
}

func TestChainNoFallbackConfigured(t *testing.T) {
	t.Parallel()
	c := &Chain{
		Steps:      []Step{{Name: "primary", Client: &fakeClient{text: ""}}},
		RetryDelay: time.Millisecond,
	}
	if _, _, err := c.Generate(context.Background(), nil, 300); !errors.Is(err, ErrNoReply) {
		t.Fatalf("Generate() error = %v, want ErrNoReply", err)
	}
}
