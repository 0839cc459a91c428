package handoff

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aurora-ops/dmbridge/bridge"
	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/llm"
	"github.com/aurora-ops/dmbridge/platform"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, recipientID, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type fakeOps struct {
	forwarded int
	err       error
}

func (f *fakeOps) ForwardInbound(ctx context.Context, username, text, spanishText string, msgCount int) error {
	if f.err != nil {
		return f.err
	}
	f.forwarded++
	return nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, maxTokens int) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.text, "primary", nil
}

type testFixture struct {
	c        *Coordinator
	sender   *fakeSender
	ops      *fakeOps
	queue    *bridge.Queue
	convos   *convo.Store
	queueDir string
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeSender, *fakeOps, *bridge.Queue, *convo.Store) {
	f := newTestFixture(t)
	return f.c, f.sender, f.ops, f.queue, f.convos
}

func newTestFixture(t *testing.T) testFixture {
	t.Helper()
	dir := t.TempDir()
	lock := func(name string) string { return filepath.Join(dir, name+".lck") }

	queue := bridge.NewQueue(filepath.Join(dir, "queue.json"), lock("queue"))
	pending := bridge.NewPendingStore(filepath.Join(dir, "pending.json"), lock("pending"))
	langs := bridge.NewLanguageStore(filepath.Join(dir, "langs.json"), lock("langs"))
	convos := convo.NewStore(filepath.Join(dir, "convos.json"), lock("convos"))
	audit, err := convo.NewAudit(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("NewAudit() error = %v", err)
	}
	t.Cleanup(func() { _ = audit.Close() })

	sender := &fakeSender{}
	ops := &fakeOps{}
	c := &Coordinator{
		Queue:        queue,
		Pending:      pending,
		Languages:    langs,
		Convos:       convos,
		Audit:        audit,
		Ops:          ops,
		Generator:    &fakeGenerator{text: "respuesta ai"},
		Sender:       sender,
		WaitWindow:   150 * time.Millisecond,
		PollInterval: 25 * time.Millisecond,
		SystemPrompt: "eres amable",
	}
	return testFixture{c: c, sender: sender, ops: ops, queue: queue, convos: convos, queueDir: dir}
}

func TestHandlePrefersQueuedHumanReply(t *testing.T) {
	t.Parallel()
	c, sender, _, queue, convos := newTestCoordinator(t)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, "ana", "respuesta humana"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	out, err := c.Handle(ctx, platform.Message{Username: "ana", Text: "hola, quiero info"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Responder != convo.ResponderHuman {
		t.Fatalf("Responder = %q, want HUMAN", out.Responder)
	}
	if out.Reply != "respuesta humana" || !out.Sent {
		t.Fatalf("Outcome = %+v, want human reply sent", out)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(sender.sent))
	}
	conv, _, err := convos.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if conv.LastResponder != convo.ResponderHuman {
		t.Fatalf("LastResponder = %q, want HUMAN", conv.LastResponder)
	}
	if flag, ok, _ := c.Pending.Get(ctx, "ana"); ok {
		t.Fatalf("pending flag not cleared: %+v", flag)
	}
}

func TestHandleTimesOutToAI(t *testing.T) {
	t.Parallel()
	c, _, ops, _, convos := newTestCoordinator(t)
	ctx := context.Background()

	out, err := c.Handle(ctx, platform.Message{Username: "ana", Text: "hola"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Responder != convo.ResponderAI {
		t.Fatalf("Responder = %q, want AI", out.Responder)
	}
	if out.Reply == "" {
		t.Fatalf("AI reply is empty")
	}
	if ops.forwarded != 1 {
		t.Fatalf("forwards = %d, want 1", ops.forwarded)
	}
	conv, _, err := convos.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if conv.LastResponder != convo.ResponderAI {
		t.Fatalf("LastResponder = %q, want AI", conv.LastResponder)
	}
}

func TestHandleForwardFailureSkipsWait(t *testing.T) {
	t.Parallel()
	c, _, ops, queue, _ := newTestCoordinator(t)
	ops.err = errors.New("telegram down")
	ctx := context.Background()

	// A queued human reply must not be consumed when forwarding failed:
	// the coordinator never entered the wait.
	if err := queue.Enqueue(ctx, "ana", "tarde"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	start := time.Now()
	out, err := c.Handle(ctx, platform.Message{Username: "ana", Text: "hola"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Responder != convo.ResponderAI {
		t.Fatalf("Responder = %q, want AI", out.Responder)
	}
	if elapsed := time.Since(start); elapsed >= c.WaitWindow {
		t.Fatalf("Handle() waited %v despite forward failure", elapsed)
	}
	if n, _ := queue.Len(ctx); n != 1 {
		t.Fatalf("queue len = %d, want 1", n)
	}
}

func TestHandleGeneratorFailureUsesFallback(t *testing.T) {
	t.Parallel()
	c, sender, _, _, _ := newTestCoordinator(t)
	c.Generator = &fakeGenerator{err: errors.New("all providers down")}
	c.FallbackText = "texto fijo"

	out, err := c.Handle(context.Background(), platform.Message{Username: "ana", Text: "hola"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Reply != "texto fijo" || out.Provider != llm.FallbackProvider {
		t.Fatalf("Outcome = %+v, want fixed fallback", out)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "texto fijo" {
		t.Fatalf("sent = %v, want fallback text delivered", sender.sent)
	}
}

func TestHandleCountsEveryInbound(t *testing.T) {
	t.Parallel()
	c, _, _, _, convos := newTestCoordinator(t)
	c.WaitWindow = 20 * time.Millisecond
	c.PollInterval = 5 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Handle(ctx, platform.Message{Username: "ana", Text: "hola"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}
	conv, _, err := convos.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if conv.MessageCount != 3 {
		t.Fatalf("MessageCount = %d, want 3", conv.MessageCount)
	}
}

func TestHandleWatcherWakesEarly(t *testing.T) {
	t.Parallel()
	f := newTestFixture(t)
	c, queue := f.c, f.queue
	c.WaitWindow = 3 * time.Second
	c.PollInterval = time.Second

	w, err := bridge.NewWatcher(filepath.Join(f.queueDir, "queue.json"))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	c.Watcher = w

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = queue.Enqueue(context.Background(), "ana", "rapida")
	}()

	start := time.Now()
	out, err := c.Handle(context.Background(), platform.Message{Username: "ana", Text: "hola"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Responder != convo.ResponderHuman {
		t.Fatalf("Responder = %q, want HUMAN", out.Responder)
	}
	if elapsed := time.Since(start); elapsed >= c.PollInterval {
		t.Fatalf("watcher did not wake early: took %v", elapsed)
	}
}
