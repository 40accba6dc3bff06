package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// exportDoc is a point-in-time snapshot served by the download endpoint
type exportDoc struct {
	ExportedAt    time.Time         `json:"exported_at"`
	Memories      []memoryView      `json:"memories"`
	Entities      []entityDoc       `json:"entities"`
	Relationships []relationshipDoc `json:"relationships"`
	Schemas       []schemaDoc       `json:"schemas"`
}

// handleExport snapshots the account synchronously and records a completed
// job for it
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memories, err := listDocs[memoryDoc](ctx, s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entities, err := listDocs[entityDoc](ctx, s.store, collEntities)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rels, err := listDocs[relationshipDoc](ctx, s.store, collRelationships)
	if err != nil {
		s.writeError(w, err)
		return
	}
	schemas, err := listDocs[schemaDoc](ctx, s.store, collSchemas)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	snapshot := exportDoc{
		ExportedAt:    now,
		Memories:      make([]memoryView, 0, len(memories)),
		Entities:      entities,
		Relationships: rels,
		Schemas:       schemas,
	}
	for _, m := range memories {
		snapshot.Memories = append(snapshot.Memories, m.view())
	}

	job := jobDoc{
		ID:          uuid.NewString(),
		Kind:        jobKindExport,
		Status:      statusCompleted,
		Result:      map[string]any{"memory_count": len(memories)},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.putDoc(ctx, collExports, job.ID, snapshot); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.putDoc(ctx, collJobs, job.ID, job); err != nil {
		s.writeError(w, err)
		return
	}

	s.audit(ctx, "export", "data", job.ID, map[string]any{"memory_count": len(memories)})
	s.writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.Get(r.Context(), collExports, id)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to read export"))
		return
	}
	if rec == nil {
		s.writeError(w, errors.New(errors.KindNotFound, "Export not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="keyoku-export-`+id+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(json.RawMessage(rec.Data))
}
