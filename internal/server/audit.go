package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

type auditDoc struct {
	ID           string         `json:"id"`
	Operation    string         `json:"operation"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// audit records a mutation. The mutation has already happened, so a failure
// to record it is logged rather than returned.
func (s *Server) audit(ctx context.Context, operation, resourceType, resourceID string, details map[string]any) {
	doc := auditDoc{
		ID:           uuid.NewString(),
		Operation:    operation,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.putDoc(ctx, collAudit, doc.ID, doc); err != nil {
		s.logger.Warn("Failed to write audit log",
			slog.String("operation", operation),
			slog.String("resource_type", resourceType),
			slog.String("error", err.Error()),
		)
	}
}

// handleAuditLogs lists audit entries newest first
func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	start, err := queryTime(q.Get("start_date"), "start_date")
	if err != nil {
		s.writeError(w, err)
		return
	}
	end, err := queryTime(q.Get("end_date"), "end_date")
	if err != nil {
		s.writeError(w, err)
		return
	}

	docs, err := listDocs[auditDoc](r.Context(), s.store, collAudit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	operation, resourceType := q.Get("operation"), q.Get("resource_type")
	filtered := make([]auditDoc, 0, len(docs))
	for _, d := range docs {
		if operation != "" && d.Operation != operation {
			continue
		}
		if resourceType != "" && d.ResourceType != resourceType {
			continue
		}
		if !start.IsZero() && d.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && d.CreatedAt.After(end) {
			continue
		}
		filtered = append(filtered, d)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })

	items, more := page(filtered, limit, offset)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"audit_logs": items,
		"total":      len(filtered),
		"has_more":   more,
	})
}

func queryTime(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Newf(errors.KindValidation, "%s must be an RFC 3339 timestamp, got '%s'", name, raw)
	}
	return t, nil
}
