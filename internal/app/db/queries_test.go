package db

import "testing"

func TestLikeEscaperNeutralizesWildcards(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"paracetamol", "paracetamol"},
		{"100%", `100\%`},
		{"MED_0001", `MED\_0001`},
		{`a\b`, `a\\b`},
		{"%_", `\%\_`},
	}

	for _, tc := range tests {
		if got := likeEscaper.Replace(tc.in); got != tc.want {
			t.Errorf("likeEscaper.Replace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
