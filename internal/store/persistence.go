package store

import (
	"context"
	"errors"

	"github.com/tripwire24/tw-experiment-engine/internal/gateway"
	"github.com/tripwire24/tw-experiment-engine/internal/model"
)

// ErrNoBackend is returned by the no-op strategy's Load so the store knows
// to populate from the seed dataset without treating it as a failure.
var ErrNoBackend = errors.New("no backend configured")

// Persistence is the single strategy the store calls for every remote
// concern. The store never branches on mode: demo mode is the no-op
// strategy, connected mode is the gateway-backed one.
type Persistence interface {
	// Load fetches the authoritative experiment set, owner names and
	// comments included, ordered by creation time descending.
	Load(ctx context.Context) ([]model.Experiment, error)
	// InsertExperiment mirrors a create and returns the server-assigned id,
	// or "" when the strategy assigns none.
	InsertExperiment(ctx context.Context, payload gateway.ExperimentInsert, ownerID string) (string, error)
	UpdateExperimentFields(ctx context.Context, id string, fields map[string]any) error
	DeleteExperiment(ctx context.Context, id string) error
	InsertComment(ctx context.Context, experimentID, authorID, text string) error
}

// Noop is the demo/guest-mode strategy: every mutation mirror succeeds
// without doing anything, and Load reports ErrNoBackend.
type Noop struct{}

func (Noop) Load(context.Context) ([]model.Experiment, error) {
	return nil, ErrNoBackend
}

func (Noop) InsertExperiment(context.Context, gateway.ExperimentInsert, string) (string, error) {
	return "", nil
}

func (Noop) UpdateExperimentFields(context.Context, string, map[string]any) error { return nil }
func (Noop) DeleteExperiment(context.Context, string) error                       { return nil }
func (Noop) InsertComment(context.Context, string, string, string) error          { return nil }

// RemoteGateway is the slice of the gateway the connected strategy uses.
// Implemented by gateway.SQLite.
type RemoteGateway interface {
	FetchExperiments(ctx context.Context) ([]model.Experiment, error)
	InsertExperiment(ctx context.Context, payload gateway.ExperimentInsert, ownerID string) (string, error)
	UpdateExperimentFields(ctx context.Context, id string, fields map[string]any) error
	DeleteExperiment(ctx context.Context, id string) error
	InsertComment(ctx context.Context, experimentID, authorID, text string) error
}

// Remote adapts a gateway into the connected-mode persistence strategy.
type Remote struct {
	gw RemoteGateway
}

// NewRemote wraps a gateway.
func NewRemote(gw RemoteGateway) *Remote {
	return &Remote{gw: gw}
}

func (r *Remote) Load(ctx context.Context) ([]model.Experiment, error) {
	return r.gw.FetchExperiments(ctx)
}

func (r *Remote) InsertExperiment(ctx context.Context, payload gateway.ExperimentInsert, ownerID string) (string, error) {
	return r.gw.InsertExperiment(ctx, payload, ownerID)
}

func (r *Remote) UpdateExperimentFields(ctx context.Context, id string, fields map[string]any) error {
	return r.gw.UpdateExperimentFields(ctx, id, fields)
}

func (r *Remote) DeleteExperiment(ctx context.Context, id string) error {
	return r.gw.DeleteExperiment(ctx, id)
}

func (r *Remote) InsertComment(ctx context.Context, experimentID, authorID, text string) error {
	return r.gw.InsertComment(ctx, experimentID, authorID, text)
}
