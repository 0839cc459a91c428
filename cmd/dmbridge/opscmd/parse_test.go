package opscmd

import "testing"

func TestUsernameFromForward(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "spanish forward",
			text: "📸 INSTAGRAM: [maria_23] Mensaje: [hola guapa]\n-------------------------",
			want: "maria_23",
		},
		{
			name: "translated forward",
			text: "📸 INSTAGRAM: [john.doe] Mensaje Original: [hey there]\nTraducción: [hola]\n-------------------------",
			want: "john.doe",
		},
		{
			name: "at prefix stripped",
			text: "📸 INSTAGRAM: [@laura] Mensaje: [hola]",
			want: "laura",
		},
		{
			name: "not a forward",
			text: "hola equipo, ¿alguien vio esto?",
			want: "",
		},
		{
			name: "empty",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := usernameFromForward(tt.text); got != tt.want {
				t.Fatalf("usernameFromForward(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatForward(t *testing.T) {
	t.Parallel()

	plain := formatForward("maria_23", "hola guapa", "hola guapa")
	if got := usernameFromForward(plain); got != "maria_23" {
		t.Fatalf("round trip username = %q, want %q", got, "maria_23")
	}

	translated := formatForward("john.doe", "hey there", "hola")
	if got := usernameFromForward(translated); got != "john.doe" {
		t.Fatalf("round trip username = %q, want %q", got, "john.doe")
	}
}

func TestCommandTargetPrefersQuotedForward(t *testing.T) {
	t.Parallel()

	msg := &telegramMessage{
		ReplyTo: &telegramMessage{
			Text: "📸 INSTAGRAM: [maria_23] Mensaje: [hola]\n-------------------------",
		},
	}
	username, rest := commandTarget(msg, "/nota", "pidió el link")
	if username != "maria_23" || rest != "pidió el link" {
		t.Fatalf("commandTarget() = (%q, %q), want (%q, %q)", username, rest, "maria_23", "pidió el link")
	}

	username, rest = commandTarget(&telegramMessage{}, "/nota", "laura pidió el link")
	if username != "laura" || rest != "pidió el link" {
		t.Fatalf("commandTarget() = (%q, %q), want (%q, %q)", username, rest, "laura", "pidió el link")
	}
}
