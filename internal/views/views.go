// Package views computes the derived read models consumed by every
// presentation surface: board filtering, kanban grouping, vault filtering,
// and analytics aggregation. All functions are pure and deterministic;
// recomputing on every render is safe.
package views

import (
	"fmt"
	"strings"

	"github.com/tripwire24/tw-experiment-engine/internal/model"
)

// ForBoard returns the experiments belonging to one board. Applied
// identically before feeding every view.
func ForBoard(experiments []model.Experiment, boardID string) []model.Experiment {
	out := make([]model.Experiment, 0, len(experiments))
	for _, e := range experiments {
		if e.BoardID == boardID {
			out = append(out, e)
		}
	}
	return out
}

// KanbanColumns partitions non-archived experiments into the five fixed
// pipeline buckets, keyed in model.StatusOrder. Archived experiments are
// excluded from every column.
func KanbanColumns(experiments []model.Experiment) map[model.Status][]model.Experiment {
	columns := make(map[model.Status][]model.Experiment, len(model.StatusOrder))
	for _, s := range model.StatusOrder {
		columns[s] = []model.Experiment{}
	}
	for _, e := range experiments {
		if e.Archived {
			continue
		}
		if _, ok := columns[e.Status]; ok {
			columns[e.Status] = append(columns[e.Status], e)
		}
	}
	return columns
}

// VaultFilter is the conjunctive predicate of the tabular vault view. Zero
// values mean "all" (no constraint). Result accepts model.ResultPending to
// match experiments with no recorded result.
type VaultFilter struct {
	Search string
	Status string
	Result string
	Market string
	Type   string
}

// Apply returns the experiments satisfying every set constraint. The text
// search is a case-insensitive substring match over title, description, and
// tags.
func (f VaultFilter) Apply(experiments []model.Experiment) []model.Experiment {
	out := make([]model.Experiment, 0, len(experiments))
	for _, e := range experiments {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f VaultFilter) matches(e model.Experiment) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(e.Title), needle) ||
			strings.Contains(strings.ToLower(e.Description), needle)
		for _, tag := range e.Tags {
			if hit {
				break
			}
			hit = strings.Contains(strings.ToLower(tag), needle)
		}
		if !hit {
			return false
		}
	}
	if f.Status != "" && f.Status != "all" && string(e.Status) != f.Status {
		return false
	}
	if f.Result != "" && f.Result != "all" {
		if f.Result == model.ResultPending {
			if e.Result != "" {
				return false
			}
		} else if string(e.Result) != f.Result {
			return false
		}
	}
	if f.Market != "" && f.Market != "all" && e.Market != f.Market {
		return false
	}
	if f.Type != "" && f.Type != "all" && e.Type != f.Type {
		return false
	}
	return true
}

// Analytics is the aggregate view over one board's experiments.
type Analytics struct {
	ActiveCount    int            `json:"active_count"`
	CompletedCount int            `json:"completed_count"`
	AverageICE     string         `json:"average_ice"`
	ByType         map[string]int `json:"by_type"`
	ByMarket       map[string]int `json:"by_market"`
	ByStatus       map[string]int `json:"by_status"`
}

// Compute aggregates a board's experiments: the average ICE score (mean of
// per-experiment means, one decimal, "0.0" when empty) and per-type,
// per-market, per-status tallies over non-archived experiments, plus a
// completed/archived total over the full input set.
func Compute(experiments []model.Experiment) Analytics {
	a := Analytics{
		AverageICE: "0.0",
		ByType:     make(map[string]int, len(model.Types)),
		ByMarket:   make(map[string]int, len(model.Markets)),
		ByStatus:   make(map[string]int, len(model.StatusOrder)),
	}
	for _, t := range model.Types {
		a.ByType[t] = 0
	}
	for _, m := range model.Markets {
		a.ByMarket[m] = 0
	}
	for _, s := range model.StatusOrder {
		a.ByStatus[string(s)] = 0
	}

	var iceSum float64
	for _, e := range experiments {
		if e.Status == model.StatusComplete || e.Status == model.StatusLearnings {
			a.CompletedCount++
		}
		if e.Archived {
			continue
		}
		a.ActiveCount++
		iceSum += e.ICEScore()
		a.ByType[e.Type]++
		a.ByMarket[e.Market]++
		a.ByStatus[string(e.Status)]++
	}

	if a.ActiveCount > 0 {
		a.AverageICE = fmt.Sprintf("%.1f", iceSum/float64(a.ActiveCount))
	}
	return a
}
