package keyoku

import (
	"context"
	"net/http"
	"net/url"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// SchemasResource manages extraction schemas
type SchemasResource struct {
	client *Client
}

// List returns all schemas
func (r *SchemasResource) List(ctx context.Context) ([]Schema, error) {
	var env struct {
		Schemas []Schema `json:"schemas"`
	}
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/schemas"}, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Schemas), nil
}

// Get fetches one schema
func (r *SchemasResource) Get(ctx context.Context, schemaID string) (*Schema, error) {
	return r.one(ctx, request{
		method: http.MethodGet,
		path:   "/v1/schemas/" + url.PathEscape(schemaID),
		route:  "/v1/schemas/{id}",
	})
}

// Create registers a schema
func (r *SchemasResource) Create(ctx context.Context, req CreateSchemaRequest) (*Schema, error) {
	if req.Schema == nil {
		req.Schema = map[string]any{}
	}
	return r.one(ctx, request{method: http.MethodPost, path: "/v1/schemas", body: req})
}

// Update changes the fields set in req
func (r *SchemasResource) Update(ctx context.Context, schemaID string, req UpdateSchemaRequest) (*Schema, error) {
	return r.one(ctx, request{
		method: http.MethodPut,
		path:   "/v1/schemas/" + url.PathEscape(schemaID),
		route:  "/v1/schemas/{id}",
		body:   req,
	})
}

// Delete removes a schema
func (r *SchemasResource) Delete(ctx context.Context, schemaID string) error {
	return r.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v1/schemas/" + url.PathEscape(schemaID),
		route:  "/v1/schemas/{id}",
	}, nil)
}

func (r *SchemasResource) one(ctx context.Context, req request) (*Schema, error) {
	var s *Schema
	if err := r.client.do(ctx, req, &s); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Newf(errors.KindMalformedResponse, "empty response for %s", req.operation())
	}
	return s, nil
}
