package model

import "time"

// SeedBoards returns the fixed demo boards. Boards are sourced from this
// seed in both modes; the connected backend does not own board rows yet.
func SeedBoards() []Board {
	return []Board{
		{
			ID:          "b1",
			Name:        "Growth Team",
			Description: "Main experiment board for the core growth team.",
			CreatedAt:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "b2",
			Name:        "Marketing Alpha",
			Description: "Experiments related to paid acquisition and socials.",
			CreatedAt:   time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC),
		},
	}
}

// SeedExperiments returns the fixed demo experiments. Used verbatim in demo
// mode and as the fallback dataset when a connected fetch fails.
func SeedExperiments() []Experiment {
	return []Experiment{
		{
			ID:            "1",
			BoardID:       "b1",
			Title:         "Referral Program v2",
			Description:   "Double sided rewards for high LTV users.",
			Status:        StatusIdea,
			ICEImpact:     8,
			ICEConfidence: 6,
			ICEEase:       7,
			Market:        "US",
			Type:          "Acquisition",
			Tags:          []string{"viral", "rewards"},
			CreatedAt:     time.Date(2023, 10, 1, 10, 0, 0, 0, time.UTC),
			Owner:         "Sarah Connor",
			Comments: []Comment{
				{
					ID:        "c1",
					UserID:    "u2",
					UserName:  "Kyle Reese",
					Text:      "We should check legal compliance for CA market.",
					Timestamp: time.Date(2023, 10, 2, 9, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			ID:            "2",
			BoardID:       "b1",
			Title:         "Onboarding Checklist",
			Description:   "Add a gamified checklist to the dashboard.",
			Status:        StatusHypothesis,
			ICEImpact:     9,
			ICEConfidence: 8,
			ICEEase:       5,
			Market:        "UK",
			Type:          "Retention",
			Tags:          []string{"gamification", "onboarding"},
			CreatedAt:     time.Date(2023, 10, 5, 14, 30, 0, 0, time.UTC),
			Owner:         "Demo User",
			Comments:      []Comment{},
		},
		{
			ID:            "3",
			BoardID:       "b1",
			Title:         "Pricing Page A/B Test",
			Description:   "Testing annual vs monthly toggle default.",
			Status:        StatusRunning,
			ICEImpact:     7,
			ICEConfidence: 9,
			ICEEase:       9,
			Market:        "CA",
			Type:          "Monetization",
			Tags:          []string{"pricing", "CRO"},
			CreatedAt:     time.Date(2023, 10, 10, 9, 15, 0, 0, time.UTC),
			Owner:         "Demo User",
			Comments:      []Comment{},
		},
		{
			ID:            "4",
			BoardID:       "b1",
			Title:         "Dark Mode Release",
			Description:   "Full dark mode support for power users.",
			Status:        StatusComplete,
			ICEImpact:     5,
			ICEConfidence: 10,
			ICEEase:       6,
			Market:        "AU",
			Type:          "Product",
			Tags:          []string{"UX", "feature"},
			CreatedAt:     time.Date(2023, 9, 20, 11, 0, 0, 0, time.UTC),
			Result:        ResultWon,
			Owner:         "John Doe",
			Comments: []Comment{
				{
					ID:            "c2",
					UserID:        "u1",
					UserName:      "Demo User",
					Text:          "Engagement increased by 15%!",
					Timestamp:     time.Date(2023, 9, 25, 11, 0, 0, 0, time.UTC),
					HasAttachment: true,
				},
			},
		},
		{
			ID:            "5",
			BoardID:       "b2",
			Title:         "Email Drip Optimization",
			Description:   "Shorten the sequence from 7 days to 3 days.",
			Status:        StatusLearnings,
			ICEImpact:     6,
			ICEConfidence: 7,
			ICEEase:       10,
			Market:        "NZ",
			Type:          "Retention",
			Tags:          []string{"email", "automation"},
			CreatedAt:     time.Date(2023, 9, 15, 16, 45, 0, 0, time.UTC),
			Result:        ResultInconclusive,
			Owner:         "Sarah Connor",
			Comments:      []Comment{},
		},
		{
			ID:            "6",
			BoardID:       "b2",
			Title:         "Influencer Campaign",
			Description:   "Partner with top 5 tech YouTubers.",
			Status:        StatusIdea,
			ICEImpact:     9,
			ICEConfidence: 5,
			ICEEase:       3,
			Market:        "SG",
			Type:          "Acquisition",
			Tags:          []string{"marketing", "social"},
			CreatedAt:     time.Date(2023, 10, 12, 8, 0, 0, 0, time.UTC),
			Owner:         "Demo User",
			Comments:      []Comment{},
		},
	}
}

// GuestProfile returns the synthetic identity used when no backend is
// configured or the user continues as guest.
func GuestProfile() UserProfile {
	return UserProfile{
		ID:       "guest",
		Email:    "guest@demo.com",
		FullName: "Guest User",
		Bio:      "Just passing through...",
	}
}
