package model

import (
	"testing"
)

func TestICEScore(t *testing.T) {
	tests := []struct {
		name       string
		impact     int
		confidence int
		ease       int
		want       string
	}{
		{"referral seed ratings", 8, 6, 7, "7.0"},
		{"all max", 10, 10, 10, "10.0"},
		{"all min", 1, 1, 1, "1.0"},
		{"rounds to one decimal", 9, 8, 5, "7.3"},
		{"repeating third", 6, 7, 10, "7.7"},
		{"zero values", 0, 0, 0, "0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Experiment{ICEImpact: tt.impact, ICEConfidence: tt.confidence, ICEEase: tt.ease}
			if got := e.ICEScoreString(); got != tt.want {
				t.Errorf("ICEScoreString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range StatusOrder {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []Status{"", "done", "IDEA", "archived"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true, want false", s)
		}
	}
}

func TestSeedDataset(t *testing.T) {
	boards := SeedBoards()
	if len(boards) != 2 {
		t.Fatalf("len(boards) = %d, want 2", len(boards))
	}
	if boards[0].Name != "Growth Team" || boards[1].Name != "Marketing Alpha" {
		t.Errorf("board names = %q, %q", boards[0].Name, boards[1].Name)
	}

	experiments := SeedExperiments()
	if len(experiments) != 6 {
		t.Fatalf("len(experiments) = %d, want 6", len(experiments))
	}

	counts := map[string]int{}
	for _, e := range experiments {
		counts[e.BoardID]++
		if !ValidStatus(e.Status) {
			t.Errorf("experiment %s has invalid status %q", e.ID, e.Status)
		}
	}
	if counts["b1"] != 4 || counts["b2"] != 2 {
		t.Errorf("board distribution = %v, want b1:4 b2:2", counts)
	}

	darkMode := experiments[3]
	if darkMode.Title != "Dark Mode Release" {
		t.Fatalf("experiment 4 title = %q", darkMode.Title)
	}
	if darkMode.Result != ResultWon {
		t.Errorf("Dark Mode Release result = %q, want won", darkMode.Result)
	}
	if darkMode.Market != "AU" {
		t.Errorf("Dark Mode Release market = %q, want AU", darkMode.Market)
	}
	if len(darkMode.Comments) != 1 || !darkMode.Comments[0].HasAttachment {
		t.Error("Dark Mode Release should carry one comment with an attachment")
	}
}

func TestSeedDatasetFresh(t *testing.T) {
	// Each call must return an independent dataset a caller can mutate.
	first := SeedExperiments()
	first[0].Title = "mutated"
	first[0].Tags[0] = "mutated"

	second := SeedExperiments()
	if second[0].Title != "Referral Program v2" {
		t.Errorf("title leaked across calls: %q", second[0].Title)
	}
	if second[0].Tags[0] != "viral" {
		t.Errorf("tags leaked across calls: %q", second[0].Tags[0])
	}
}

func TestExperimentClone(t *testing.T) {
	orig := SeedExperiments()[0]
	cp := orig.Clone()

	cp.Tags[0] = "changed"
	cp.Comments[0].Text = "changed"

	if orig.Tags[0] != "viral" {
		t.Errorf("clone shares tags slice: %q", orig.Tags[0])
	}
	if orig.Comments[0].Text == "changed" {
		t.Error("clone shares comments slice")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		want    string
	}{
		{"full name wins", UserProfile{FullName: "Sarah Connor", Email: "sc@example.com"}, "Sarah Connor"},
		{"email fallback", UserProfile{Email: "sc@example.com"}, "sc@example.com"},
		{"literal fallback", UserProfile{}, "Me"},
		{"guest profile", GuestProfile(), "Guest User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
