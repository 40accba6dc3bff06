package keyoku

import (
	"context"
	"net/http"
	"net/url"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

type entitiesEnvelope struct {
	Entities []Entity `json:"entities"`
}

type relationshipsEnvelope struct {
	Relationships []Relationship `json:"relationships"`
}

// EntitiesResource reads knowledge graph entities
type EntitiesResource struct {
	client *Client
}

// List returns entities, optionally filtered by type
func (r *EntitiesResource) List(ctx context.Context, opts *EntityListOptions) ([]Entity, error) {
	limit, offset, typ := defaultListLimit, 0, ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		offset = opts.Offset
		typ = opts.Type
	}

	query := (&Params{}).Add("limit", limit).Add("offset", offset).Add("type", typ)

	var env entitiesEnvelope
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/entities", query: query}, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Entities), nil
}

// Search finds entities by name
func (r *EntitiesResource) Search(ctx context.Context, q string, opts *EntitySearchOptions) ([]Entity, error) {
	limit, typ := defaultSearchLimit, ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		typ = opts.Type
	}

	query := (&Params{}).Add("query", q).Add("limit", limit).Add("type", typ)

	var env entitiesEnvelope
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/entities/search", query: query}, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Entities), nil
}

// Get fetches one entity
func (r *EntitiesResource) Get(ctx context.Context, entityID string) (*Entity, error) {
	var e *Entity
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/entities/" + url.PathEscape(entityID),
		route:  "/v1/entities/{id}",
	}, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.Newf(errors.KindMalformedResponse, "empty response for entity %s", entityID)
	}
	return e, nil
}

// Relationships lists the edges touching an entity, in both directions by
// default
func (r *EntitiesResource) Relationships(ctx context.Context, entityID string, opts *RelationshipOptions) ([]Relationship, error) {
	direction, typ := DirectionBoth, ""
	if opts != nil {
		if opts.Direction != "" {
			direction = opts.Direction
		}
		typ = opts.Type
	}

	query := (&Params{}).Add("direction", string(direction)).Add("type", typ)

	var env relationshipsEnvelope
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/entities/" + url.PathEscape(entityID) + "/relationships",
		route:  "/v1/entities/{id}/relationships",
		query:  query,
	}, &env)
	if err != nil {
		return nil, err
	}
	return nonNil(env.Relationships), nil
}

// nonNil returns an empty slice in place of nil
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
