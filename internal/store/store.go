// Package store owns the canonical in-memory board and experiment state.
// Every mutation applies optimistically to local state first, then mirrors
// to the persistence strategy fire-and-forget: mirror failures are logged,
// never rolled back, and never surfaced to the caller. The one exception is
// experiment creation, which schedules a full reconciliation fetch after a
// successful insert so the locally-assigned temporary id is replaced by the
// server-assigned one.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripwire24/tw-experiment-engine/internal/gateway"
	"github.com/tripwire24/tw-experiment-engine/internal/model"
	"github.com/tripwire24/tw-experiment-engine/internal/session"
)

// ErrLocked rejects mutations on an experiment that has been completed.
// Nothing transitions a locked experiment back to unlocked.
var ErrLocked = errors.New("experiment is locked")

// ValidationError marks a mutation rejected before any state change or
// network call. The text is user-facing.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// IdentityProvider supplies the active identity for mutation attribution.
// Implemented by session.Provider.
type IdentityProvider interface {
	Current() *session.Identity
	DisplayName() string
}

// mirrorTimeout bounds a single fire-and-forget backend call.
const mirrorTimeout = 30 * time.Second

// Store is the single source of truth for boards and experiments.
type Store struct {
	persist  Persistence
	identity IdentityProvider
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu          sync.RWMutex
	experiments []model.Experiment
	boards      []model.Board
	loading     bool

	mirrors sync.WaitGroup
}

// New builds a store over the given persistence strategy and identity
// provider. State is empty until Load runs.
func New(persist Persistence, identity IdentityProvider, logger *slog.Logger) *Store {
	return &Store{
		persist:  persist,
		identity: identity,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		loading:  true,
	}
}

// SetClock and SetIDGenerator replace the time and identifier sources.
// For tests.
func (s *Store) SetClock(now func() time.Time)  { s.now = now }
func (s *Store) SetIDGenerator(f func() string) { s.newID = f }

// Wait blocks until all in-flight mirror calls have finished. Used on
// shutdown and in tests; callers never need it for correctness.
func (s *Store) Wait() { s.mirrors.Wait() }

// Load populates boards and experiments. Boards always come from the fixed
// seed in the current scope. Experiments come from the persistence strategy
// when one is configured; on any fetch failure the seed dataset substitutes
// and the condition is logged. The loading flag resolves to false after
// every attempt, success or failure.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	boards := model.SeedBoards()

	experiments, err := s.persist.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoBackend) {
			s.logger.Error("fetching experiments, falling back to seed data", "error", err)
		}
		experiments = model.SeedExperiments()
	}

	for i := range experiments {
		experiments[i].BoardName = boardName(boards, experiments[i].BoardID)
	}

	s.mu.Lock()
	s.boards = boards
	s.experiments = experiments
	s.loading = false
	s.mu.Unlock()
}

// Loading reports whether the initial load is still in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Experiments returns a deep copy of the canonical experiment list.
func (s *Store) Experiments() []model.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Experiment, len(s.experiments))
	for i, e := range s.experiments {
		out[i] = e.Clone()
	}
	return out
}

// Boards returns a copy of the canonical board list.
func (s *Store) Boards() []model.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Board, len(s.boards))
	copy(out, s.boards)
	return out
}

// Experiment returns a deep copy of one experiment by id.
func (s *Store) Experiment(id string) (model.Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.experiments {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return model.Experiment{}, false
}

// UpdateStatus moves an experiment to a new pipeline stage. The pipeline
// order is a display convention: backward moves are allowed.
func (s *Store) UpdateStatus(id string, status model.Status) error {
	if !model.ValidStatus(status) {
		return ValidationError(fmt.Sprintf("unknown status %q", status))
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ValidationError("experiment not found")
	}
	if s.experiments[i].Locked {
		s.mu.Unlock()
		return ErrLocked
	}
	s.experiments[i].Status = status
	s.mu.Unlock()

	s.mirror("update status", func(ctx context.Context) error {
		return s.persist.UpdateExperimentFields(ctx, id, map[string]any{"status": status})
	})
	return nil
}

// UpdateExperiment replaces the full local record matching exp.ID. The
// denormalized Owner, Comments, and BoardName fields of exp are ignored:
// comments stay canonical, and the projections are recomputed.
func (s *Store) UpdateExperiment(exp model.Experiment) error {
	if err := validateExperiment(exp); err != nil {
		return err
	}

	s.mu.Lock()
	i := s.indexOf(exp.ID)
	if i < 0 {
		s.mu.Unlock()
		return ValidationError("experiment not found")
	}
	if s.experiments[i].Locked {
		s.mu.Unlock()
		return ErrLocked
	}

	next := exp.Clone()
	next.Owner = s.experiments[i].Owner
	next.Comments = s.experiments[i].Comments
	next.CreatedAt = s.experiments[i].CreatedAt
	next.BoardName = boardName(s.boards, next.BoardID)
	s.experiments[i] = next
	s.mu.Unlock()

	s.mirror("update experiment", func(ctx context.Context) error {
		return s.persist.UpdateExperimentFields(ctx, exp.ID, map[string]any{
			"board_id":       next.BoardID,
			"title":          next.Title,
			"description":    next.Description,
			"status":         next.Status,
			"ice_impact":     next.ICEImpact,
			"ice_confidence": next.ICEConfidence,
			"ice_ease":       next.ICEEase,
			"market":         next.Market,
			"type":           next.Type,
			"tags":           next.Tags,
			"archived":       next.Archived,
			"locked":         next.Locked,
			"result":         next.Result,
		})
	})
	return nil
}

// ArchiveExperiment forces an experiment into the archived learnings state.
// The store deliberately does not verify the prior status: the UI only
// offers the action from learnings, but calling it from any status forces
// status=learnings, archived=true.
func (s *Store) ArchiveExperiment(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ValidationError("experiment not found")
	}
	if s.experiments[i].Locked {
		s.mu.Unlock()
		return ErrLocked
	}
	s.experiments[i].Status = model.StatusLearnings
	s.experiments[i].Archived = true
	s.mu.Unlock()

	s.mirror("archive experiment", func(ctx context.Context) error {
		return s.persist.UpdateExperimentFields(ctx, id, map[string]any{
			"status":   model.StatusLearnings,
			"archived": true,
		})
	})
	return nil
}

// CompleteExperiment finalizes an experiment: learnings, archived, locked.
// A result must be recorded first. Locking is terminal.
func (s *Store) CompleteExperiment(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ValidationError("experiment not found")
	}
	if s.experiments[i].Locked {
		s.mu.Unlock()
		return ErrLocked
	}
	if s.experiments[i].Result == "" {
		s.mu.Unlock()
		return ValidationError("a result must be recorded before completing")
	}
	s.experiments[i].Status = model.StatusLearnings
	s.experiments[i].Archived = true
	s.experiments[i].Locked = true
	s.mu.Unlock()

	s.mirror("complete experiment", func(ctx context.Context) error {
		return s.persist.UpdateExperimentFields(ctx, id, map[string]any{
			"status":   model.StatusLearnings,
			"archived": true,
			"locked":   true,
		})
	})
	return nil
}

// DeleteExperiment removes an experiment from local state and mirrors the
// row delete. Destructive and irreversible; confirmation is the caller's
// responsibility.
func (s *Store) DeleteExperiment(id string) {
	s.mu.Lock()
	kept := s.experiments[:0]
	for _, e := range s.experiments {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.experiments = kept
	s.mu.Unlock()

	s.mirror("delete experiment", func(ctx context.Context) error {
		err := s.persist.DeleteExperiment(ctx, id)
		if errors.Is(err, gateway.ErrNotFound) {
			return nil
		}
		return err
	})
}

// Draft is the caller-supplied portion of a new experiment. Lifecycle
// fields, identity, and timestamps are assigned by the store.
type Draft struct {
	BoardID       string
	Title         string
	Description   string
	Status        model.Status
	ICEImpact     int
	ICEConfidence int
	ICEEase       int
	Market        string
	Type          string
	Tags          []string
}

// AddExperiment validates the draft, prepends the new experiment to local
// state under a temporary id, and mirrors the insert. When the strategy
// assigns a server id, a full reconciliation load replaces the temporary
// record with the authoritative one.
func (s *Store) AddExperiment(draft Draft) (model.Experiment, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return model.Experiment{}, ValidationError("title is required")
	}
	status := draft.Status
	if status == "" {
		status = model.StatusIdea
	}
	if !model.ValidStatus(status) {
		return model.Experiment{}, ValidationError(fmt.Sprintf("unknown status %q", status))
	}
	for _, rating := range []int{draft.ICEImpact, draft.ICEConfidence, draft.ICEEase} {
		if rating < 1 || rating > 10 {
			return model.Experiment{}, ValidationError("ICE ratings must be between 1 and 10")
		}
	}

	s.mu.Lock()
	name := boardName(s.boards, draft.BoardID)
	if name == "" {
		s.mu.Unlock()
		return model.Experiment{}, ValidationError("board not found")
	}

	exp := model.Experiment{
		ID:            s.newID(),
		BoardID:       draft.BoardID,
		Title:         draft.Title,
		Description:   draft.Description,
		Status:        status,
		ICEImpact:     draft.ICEImpact,
		ICEConfidence: draft.ICEConfidence,
		ICEEase:       draft.ICEEase,
		Market:        draft.Market,
		Type:          draft.Type,
		Tags:          append([]string(nil), draft.Tags...),
		CreatedAt:     s.now(),
		Result:        "",
		Owner:         s.identity.DisplayName(),
		Comments:      []model.Comment{},
		BoardName:     name,
	}
	s.experiments = append([]model.Experiment{exp}, s.experiments...)
	s.mu.Unlock()

	ownerID := ""
	if ident := s.identity.Current(); ident != nil {
		ownerID = ident.ID
	}
	payload := gateway.ExperimentInsert{
		BoardID:       draft.BoardID,
		Title:         draft.Title,
		Description:   draft.Description,
		Status:        string(status),
		ICEImpact:     draft.ICEImpact,
		ICEConfidence: draft.ICEConfidence,
		ICEEase:       draft.ICEEase,
		Market:        draft.Market,
		Type:          draft.Type,
		Tags:          draft.Tags,
	}

	s.mirror("insert experiment", func(ctx context.Context) error {
		serverID, err := s.persist.InsertExperiment(ctx, payload, ownerID)
		if err != nil {
			return err
		}
		if serverID != "" {
			// Refetch to pick up the server-assigned id and timestamp.
			s.Load(ctx)
		}
		return nil
	})
	return exp.Clone(), nil
}

// AddComment appends a comment attributed to the active identity.
func (s *Store) AddComment(experimentID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("comment text is required")
	}

	userID := "temp"
	if ident := s.identity.Current(); ident != nil {
		userID = ident.ID
	}
	comment := model.Comment{
		ID:        s.newID(),
		UserID:    userID,
		UserName:  s.identity.DisplayName(),
		Text:      text,
		Timestamp: s.now(),
	}

	s.mu.Lock()
	i := s.indexOf(experimentID)
	if i < 0 {
		s.mu.Unlock()
		return ValidationError("experiment not found")
	}
	s.experiments[i].Comments = append(s.experiments[i].Comments, comment)
	s.mu.Unlock()

	s.mirror("insert comment", func(ctx context.Context) error {
		return s.persist.InsertComment(ctx, experimentID, userID, text)
	})
	return nil
}

// AddBoard appends a new board and returns its id so the caller can switch
// the active board context. Boards are local-only in the current scope: no
// backend table is written even in connected mode.
func (s *Store) AddBoard(name, description string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ValidationError("board name is required")
	}

	board := model.Board{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.boards = append(s.boards, board)
	s.mu.Unlock()
	return board.ID, nil
}

// UpdateBoard edits a board's name and description in place, local-only.
// The BoardName projection on its experiments is recomputed.
func (s *Store) UpdateBoard(id, name, description string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError("board name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.boards {
		if s.boards[i].ID != id {
			continue
		}
		s.boards[i].Name = name
		s.boards[i].Description = description
		for j := range s.experiments {
			if s.experiments[j].BoardID == id {
				s.experiments[j].BoardName = name
			}
		}
		return nil
	}
	return ValidationError("board not found")
}

// mirror dispatches a backend call without blocking the caller. Failures
// are logged and otherwise discarded: local state is already the truth the
// user sees, and these paths trade strict consistency for responsiveness.
func (s *Store) mirror(op string, fn func(ctx context.Context) error) {
	s.mirrors.Add(1)
	go func() {
		defer s.mirrors.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("backend mirror failed", "op", op, "error", err)
		}
	}()
}

// indexOf returns the position of an experiment id, or -1. Callers hold mu.
func (s *Store) indexOf(id string) int {
	for i := range s.experiments {
		if s.experiments[i].ID == id {
			return i
		}
	}
	return -1
}

func validateExperiment(exp model.Experiment) error {
	if strings.TrimSpace(exp.Title) == "" {
		return ValidationError("title is required")
	}
	if !model.ValidStatus(exp.Status) {
		return ValidationError(fmt.Sprintf("unknown status %q", exp.Status))
	}
	for _, rating := range []int{exp.ICEImpact, exp.ICEConfidence, exp.ICEEase} {
		if rating < 1 || rating > 10 {
			return ValidationError("ICE ratings must be between 1 and 10")
		}
	}
	switch exp.Result {
	case "", model.ResultWon, model.ResultLost, model.ResultInconclusive:
	default:
		return ValidationError(fmt.Sprintf("unknown result %q", exp.Result))
	}
	return nil
}

func boardName(boards []model.Board, id string) string {
	for _, b := range boards {
		if b.ID == id {
			return b.Name
		}
	}
	return ""
}
