package ledger

import (
	"testing"

	"pocketbook/internal/core"
)

func TestFuzzyNameMatch(t *testing.T) {
	tests := []struct {
		name      string
		typed     string
		candidate string
		want      bool
	}{
		{"exact", "Ada Lovelace", "Ada Lovelace", true},
		{"case insensitive", "ada lovelace", "ADA LOVELACE", true},
		{"subset typed", "Ada", "Ada Lovelace", true},
		{"subset candidate", "Ada Lovelace", "Ada", true},
		{"two shared tokens", "Ada Lovelace King", "Ada Lovelace Queen", true},
		{"one shared of many", "Ada King", "Ada Queen", false},
		{"disjoint", "Grace Hopper", "Ada Lovelace", false},
		{"empty typed", "", "Ada", false},
		{"empty candidate", "Ada", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FuzzyNameMatch(tt.typed, tt.candidate); got != tt.want {
				t.Fatalf("FuzzyNameMatch(%q, %q) = %v, want %v", tt.typed, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestCloseCounterparties(t *testing.T) {
	saved := []core.Counterparty{
		{ID: "1", Name: "Avraham"},
		{ID: "2", Name: "Avram"},
		{ID: "3", Name: "Beatrice"},
		{ID: "4", Name: "Ava Smith"},
	}

	t.Run("typo within distance", func(t *testing.T) {
		got := CloseCounterparties("Avrahm", saved)
		if len(got) == 0 {
			t.Fatal("expected near-miss matches")
		}
		if got[0].ID != "1" {
			t.Fatalf("best match = %+v, want Avraham first", got[0])
		}
		for _, cp := range got {
			if cp.ID == "3" {
				t.Fatal("Beatrice is not a close match")
			}
		}
	})

	t.Run("token match ranks before near miss", func(t *testing.T) {
		got := CloseCounterparties("Ava Smith", saved)
		if len(got) == 0 || got[0].ID != "4" {
			t.Fatalf("matches = %+v, want exact token match first", got)
		}
	})

	t.Run("blank input", func(t *testing.T) {
		if got := CloseCounterparties("   ", saved); got != nil {
			t.Fatalf("blank input matched: %+v", got)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if got := CloseCounterparties("Zelda", saved); len(got) != 0 {
			t.Fatalf("unexpected matches: %+v", got)
		}
	})
}
