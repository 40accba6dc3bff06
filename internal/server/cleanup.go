package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

const (
	staleAfter          = 30 * 24 * time.Hour
	lowImportance       = 0.3
	defaultOldestWindow = 100
)

var cleanupDescriptions = map[string]string{
	"stale":          "Memories not accessed in the last 30 days",
	"low_importance": "Memories with importance below 0.3",
	"oldest":         "Oldest memories first",
	"never_accessed": "Memories that have never been read back",
}

var cleanupOrder = []string{"stale", "low_importance", "oldest", "never_accessed"}

// candidates returns the memories a strategy would remove, in removal order
func candidates(strategy string, docs []memoryDoc, now time.Time) []memoryDoc {
	out := make([]memoryDoc, 0)
	switch strategy {
	case "stale":
		for _, d := range docs {
			last := d.CreatedAt
			if d.LastAccessedAt != nil {
				last = *d.LastAccessedAt
			}
			if now.Sub(last) > staleAfter {
				out = append(out, d)
			}
		}
	case "low_importance":
		for _, d := range docs {
			if d.Importance < lowImportance {
				out = append(out, d)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Importance < out[j].Importance })
	case "oldest":
		out = append(out, docs...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		if len(out) > defaultOldestWindow {
			out = out[:defaultOldestWindow]
		}
	case "never_accessed":
		for _, d := range docs {
			if d.AccessCount == 0 {
				out = append(out, d)
			}
		}
	}
	return out
}

func (s *Server) handleCleanupSuggestions(w http.ResponseWriter, r *http.Request) {
	docs, err := listDocs[memoryDoc](r.Context(), s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	suggestions := make([]map[string]any, 0, len(cleanupOrder))
	for _, strategy := range cleanupOrder {
		suggestions = append(suggestions, map[string]any{
			"strategy":    strategy,
			"description": cleanupDescriptions[strategy],
			"count":       len(candidates(strategy, docs, now)),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
		"usage": map[string]any{
			"memories_stored": len(docs),
			"memories_limit":  s.opts.MemoryLimit,
			"percentage":      float64(len(docs)) * 100 / float64(s.opts.MemoryLimit),
		},
	})
}

type cleanupBody struct {
	Strategy string `json:"strategy"`
	Limit    int    `json:"limit"`
	DryRun   bool   `json:"dry_run"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var body cleanupBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if _, ok := cleanupDescriptions[body.Strategy]; !ok {
		s.writeError(w, errors.Newf(errors.KindValidation,
			"strategy must be one of [stale, low_importance, oldest, never_accessed], got '%s'", body.Strategy))
		return
	}
	if body.Limit < 0 {
		s.writeError(w, errors.New(errors.KindValidation, "limit must not be negative"))
		return
	}

	docs, err := listDocs[memoryDoc](r.Context(), s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}

	victims := candidates(body.Strategy, docs, time.Now().UTC())
	if body.Limit > 0 && len(victims) > body.Limit {
		victims = victims[:body.Limit]
	}
	ids := make([]string, 0, len(victims))
	for _, v := range victims {
		ids = append(ids, v.ID)
	}

	if body.DryRun {
		s.writeJSON(w, http.StatusOK, map[string]any{"deleted_count": len(ids), "deleted_ids": ids})
		return
	}

	s.memMu.Lock()
	n, err := s.store.Delete(r.Context(), collMemories, ids...)
	s.memMu.Unlock()
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to delete memories"))
		return
	}
	s.audit(r.Context(), "cleanup", "memory", "", map[string]any{"strategy": body.Strategy, "count": n})
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted_count": n, "deleted_ids": ids})
}
