package translate

import (
	"context"
	"errors"
	"testing"
)

type fakeTranslator struct {
	out string
	err error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestForClientPassThrough(t *testing.T) {
	t.Parallel()
	s := &Service{Machine: &fakeTranslator{out: "translated"}}
	if got := s.ForClient(context.Background(), "hola", "es"); got != "hola" {
		t.Fatalf("ForClient(es) = %q, want hola", got)
	}
	if got := s.ForClient(context.Background(), "hola", ""); got != "hola" {
		t.Fatalf("ForClient(empty) = %q, want hola", got)
	}
}

func TestForClientPrefersNatural(t *testing.T) {
	t.Parallel()
	s := &Service{
		Natural: &fakeTranslator{out: "natural"},
		Machine: &fakeTranslator{out: "machine"},
	}
	if got := s.ForClient(context.Background(), "hola", "en"); got != "natural" {
		t.Fatalf("ForClient() = %q, want natural", got)
	}
}

func TestForClientFallsBackToMachine(t *testing.T) {
	t.Parallel()
	s := &Service{
		Natural: &fakeTranslator{err: errors.New("llm down")},
		Machine: &fakeTranslator{out: "machine"},
	}
	if got := s.ForClient(context.Background(), "hola", "en"); got != "machine" {
		t.Fatalf("ForClient() = %q, want machine", got)
	}
}

func TestForClientDegradesToInput(t *testing.T) {
	t.Parallel()
	s := &Service{
		Natural: &fakeTranslator{err: errors.New("down")},
		Machine: &fakeTranslator{err: errors.New("down")},
	}
	if got := s.ForClient(context.Background(), "hola", "en"); got != "hola" {
		t.Fatalf("ForClient() = %q, want original text", got)
	}
}

func TestToSpanishDegradesToInput(t *testing.T) {
	t.Parallel()
	s := &Service{Machine: &fakeTranslator{err: errors.New("down")}}
	if got := s.ToSpanish(context.Background(), "hello"); got != "hello" {
		t.Fatalf("ToSpanish() = %q, want original text", got)
	}
}

func TestDetectShortText(t *testing.T) {
	t.Parallel()
	if got := Detect("a"); got != "" {
		t.Fatalf("Detect(short) = %q, want empty", got)
	}
}
