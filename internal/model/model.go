// Package model defines the Growth Ops entities and the static reference
// data (status pipeline, result taxonomy, market/type lists) shared by the
// store, the gateway, and the view layer.
package model

import (
	"fmt"
	"time"
)

// Status is an experiment's position in the five-stage pipeline.
type Status string

const (
	StatusIdea       Status = "idea"
	StatusHypothesis Status = "hypothesis"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusLearnings  Status = "learnings"
)

// StatusOrder lists the pipeline stages in display order. The order is a
// display convention only; the store allows backward moves.
var StatusOrder = []Status{StatusIdea, StatusHypothesis, StatusRunning, StatusComplete, StatusLearnings}

// StatusLabels maps each status to its kanban column label.
var StatusLabels = map[Status]string{
	StatusIdea:       "Backlog",
	StatusHypothesis: "Hypothesis",
	StatusRunning:    "Running",
	StatusComplete:   "Complete",
	StatusLearnings:  "Learnings",
}

// ValidStatus reports whether s is one of the five pipeline stages.
func ValidStatus(s Status) bool {
	_, ok := StatusLabels[s]
	return ok
}

// Result is the outcome recorded for a completed experiment.
// The empty string means no result yet ("pending" in filter terms).
type Result string

const (
	ResultWon          Result = "won"
	ResultLost         Result = "lost"
	ResultInconclusive Result = "inconclusive"
)

// ResultPending is a synthetic filter value matching experiments with no
// recorded result. It is never stored on an experiment.
const ResultPending = "pending"

// Results lists the recordable outcomes.
var Results = []Result{ResultWon, ResultLost, ResultInconclusive}

// Markets and Types are the fixed classification lists offered by the UI.
var (
	Markets = []string{"US", "UK", "CA", "AU", "NZ", "SG"}
	Types   = []string{"Acquisition", "Retention", "Monetization", "Product"}
)

// Board is a named workspace grouping a subset of experiments.
type Board struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is an append-only note on an experiment, attributed to the user
// who wrote it. Comments are ordered ascending by timestamp.
type Comment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	HasAttachment bool      `json:"hasAttachment,omitempty"`
}

// Experiment is a single growth experiment on a board.
//
// Owner and BoardName are denormalized display projections: they are
// recomputed from the profiles join and the board list at read time and are
// never persisted as authoritative values.
type Experiment struct {
	ID            string    `json:"id"`
	BoardID       string    `json:"board_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	ICEImpact     int       `json:"ice_impact"`
	ICEConfidence int       `json:"ice_confidence"`
	ICEEase       int       `json:"ice_ease"`
	Market        string    `json:"market"`
	Type          string    `json:"type"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	Archived      bool      `json:"archived"`
	Locked        bool      `json:"locked"`
	Result        Result    `json:"result,omitempty"`
	Owner         string    `json:"owner"`
	Comments      []Comment `json:"comments"`
	BoardName     string    `json:"boardName,omitempty"`
}

// ICEScore returns the arithmetic mean of the impact/confidence/ease ratings.
func (e Experiment) ICEScore() float64 {
	return float64(e.ICEImpact+e.ICEConfidence+e.ICEEase) / 3
}

// ICEScoreString renders the ICE score to one decimal, the display format
// used everywhere an ICE value is shown.
func (e Experiment) ICEScoreString() string {
	return fmt.Sprintf("%.1f", e.ICEScore())
}

// Clone returns a deep copy of the experiment, so callers holding the copy
// can never reach the store's canonical slices.
func (e Experiment) Clone() Experiment {
	cp := e
	if e.Tags != nil {
		cp.Tags = make([]string, len(e.Tags))
		copy(cp.Tags, e.Tags)
	}
	if e.Comments != nil {
		cp.Comments = make([]Comment, len(e.Comments))
		copy(cp.Comments, e.Comments)
	}
	return cp
}

// UserProfile is the authoritative profile for a signed-in identity, or a
// synthetic one in guest mode.
type UserProfile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Bio          string `json:"bio,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// DisplayName returns the name used to attribute new experiments and
// comments: full name, else email, else the literal "Me".
func (p UserProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		return p.Email
	}
	return "Me"
}
