package agestr

import "testing"

func TestHours(t *testing.T) {
	t.Parallel()
	cases := []struct {
		label string
		want  float64
	}{
		{"2h", 2},
		{"2 h", 2},
		{"30 min", 0.5},
		{"45m", 0.75},
		{"3d", 72},
		{"3 d", 72},
		{"1 sem", 168},
		{"2w", 336},
		{"ahora", 0},
		{"now", 0},
		{"just now", 0},
		{"", 0},
		{"garbage", 0},
		{"h2", 0},
		{"10 años", 0},
	}
	for _, tc := range cases {
		if got := Hours(tc.label); got != tc.want {
			t.Fatalf("Hours(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
}
