package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

type schemaDoc struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type schemaBody struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	docs, err := listDocs[schemaDoc](r.Context(), s.store, collSchemas)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schemas": docs})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := s.loadSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var body schemaBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		s.writeError(w, errors.New(errors.KindValidation, "name is required"))
		return
	}
	if body.Schema == nil {
		s.writeError(w, errors.New(errors.KindValidation, "schema is required"))
		return
	}
	if err := s.checkSchemaName(r.Context(), *body.Name, ""); err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	doc := schemaDoc{
		ID:        uuid.NewString(),
		Name:      *body.Name,
		Schema:    body.Schema,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if body.Description != nil {
		doc.Description = *body.Description
	}

	if err := s.putDoc(r.Context(), collSchemas, doc.ID, doc); err != nil {
		s.writeError(w, err)
		return
	}
	s.audit(r.Context(), "create", "schema", doc.ID, map[string]any{"name": doc.Name})
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := s.loadSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body schemaBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	changed := make([]string, 0, 3)
	if body.Name != nil {
		if strings.TrimSpace(*body.Name) == "" {
			s.writeError(w, errors.New(errors.KindValidation, "name must not be empty"))
			return
		}
		if err := s.checkSchemaName(r.Context(), *body.Name, doc.ID); err != nil {
			s.writeError(w, err)
			return
		}
		doc.Name = *body.Name
		changed = append(changed, "name")
	}
	if body.Description != nil {
		doc.Description = *body.Description
		changed = append(changed, "description")
	}
	if body.Schema != nil {
		doc.Schema = body.Schema
		changed = append(changed, "schema")
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := s.putDoc(r.Context(), collSchemas, doc.ID, doc); err != nil {
		s.writeError(w, err)
		return
	}
	s.audit(r.Context(), "update", "schema", doc.ID, map[string]any{"fields": changed})
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := s.store.Delete(r.Context(), collSchemas, id)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to delete schema"))
		return
	}
	if n == 0 {
		s.writeError(w, errors.New(errors.KindNotFound, "Schema not found"))
		return
	}
	s.audit(r.Context(), "delete", "schema", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadSchema(ctx context.Context, id string) (*schemaDoc, error) {
	var doc schemaDoc
	found, err := s.getDoc(ctx, collSchemas, id, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.KindNotFound, "Schema not found")
	}
	return &doc, nil
}

// checkSchemaName rejects a name already used by another schema
func (s *Server) checkSchemaName(ctx context.Context, name, selfID string) error {
	docs, err := listDocs[schemaDoc](ctx, s.store, collSchemas)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.ID != selfID && strings.EqualFold(d.Name, name) {
			return errors.Newf(errors.KindGeneric, "schema '%s' already exists", name).
				WithStatus(http.StatusConflict).
				WithCode("conflict")
		}
	}
	return nil
}
