package reengage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
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

func newTestScheduler(t *testing.T) (*Scheduler, *fakeSender) {
	t.Helper()
	dir := t.TempDir()
	sender := &fakeSender{}
	s := &Scheduler{
		Store:  NewStore(filepath.Join(dir, "reengaged.json"), filepath.Join(dir, "reengaged.lck")),
		Sender: sender,
		Templates: Templates{
			WhatsAppLink: "https://wa.me/573001112233",
		},
		sleep: func(context.Context, time.Duration) {},
	}
	return s, sender
}

func TestMaybeReengageWindowBounds(t *testing.T) {
	t.Parallel()
	s, sender := newTestScheduler(t)
	ctx := context.Background()

	cases := []struct {
		age  string
		want bool
	}{
		{"30 min", false},
		{"2h", true},
		{"72h", false},
	}
	for i, tc := range cases {
		c := Candidate{Username: "cliente" + string(rune('a'+i)), AgeLabel: tc.age}
		sent, err := s.MaybeReengage(ctx, c)
		if err != nil {
			t.Fatalf("MaybeReengage(%s) error = %v", tc.age, err)
		}
		if sent != tc.want {
			t.Fatalf("MaybeReengage(%s) = %v, want %v", tc.age, sent, tc.want)
		}
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(sender.sent))
	}
}

func TestMaybeReengageOnceOnly(t *testing.T) {
	t.Parallel()
	s, sender := newTestScheduler(t)
	ctx := context.Background()
	c := Candidate{Username: "ana", AgeLabel: "2h"}

	sent, err := s.MaybeReengage(ctx, c)
	if err != nil {
		t.Fatalf("MaybeReengage() error = %v", err)
	}
	if !sent {
		t.Fatalf("first MaybeReengage() = false, want true")
	}
	sent, err = s.MaybeReengage(ctx, c)
	if err != nil {
		t.Fatalf("second MaybeReengage() error = %v", err)
	}
	if sent {
		t.Fatalf("second MaybeReengage() = true, want false")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(sender.sent))
	}
}

func TestSendFailureLeavesNoRecord(t *testing.T) {
	t.Parallel()
	s, sender := newTestScheduler(t)
	sender.err = context.DeadlineExceeded
	ctx := context.Background()

	sent, err := s.MaybeReengage(ctx, Candidate{Username: "ana", AgeLabel: "2h"})
	if err != nil {
		t.Fatalf("MaybeReengage() error = %v", err)
	}
	if sent {
		t.Fatalf("MaybeReengage() = true despite send failure")
	}
	has, err := s.Store.Has(ctx, "ana")
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if has {
		t.Fatalf("record written despite send failure")
	}
}

func TestComposeIncludesWhatsAppLink(t *testing.T) {
	t.Parallel()
	tpl := Templates{WhatsAppLink: "https://wa.me/573001112233"}
	for _, lang := range []string{"", "es", "en"} {
		msg := tpl.Compose(context.Background(), lang)
		if !strings.Contains(msg, "wa.me") {
			t.Fatalf("Compose(%q) missing link: %q", lang, msg)
		}
	}
}

func TestRunSpacesSends(t *testing.T) {
	t.Parallel()
	s, sender := newTestScheduler(t)
	pauses := 0
	s.sleep = func(context.Context, time.Duration) { pauses++ }

	candidates := []Candidate{
		{Username: "ana", AgeLabel: "2h"},
		{Username: "beto", AgeLabel: "5h"},
		{Username: "carla", AgeLabel: "30 min"},
	}
	sent := s.Run(context.Background(), candidates)
	if sent != 2 {
		t.Fatalf("Run() = %d, want 2", sent)
	}
	if pauses != 2 {
		t.Fatalf("pauses = %d, want 2", pauses)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(sender.sent))
	}
}
