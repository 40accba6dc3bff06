package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// entityDoc is both the stored and the wire form of an entity
type entityDoc struct {
	ID            string         `json:"id"`
	CanonicalName string         `json:"canonicalName"`
	Type          string         `json:"type"`
	Properties    map[string]any `json:"properties"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

// relationshipDoc is both the stored and the wire form of a relationship
type relationshipDoc struct {
	ID               string         `json:"id"`
	SourceEntityID   string         `json:"sourceEntityId"`
	TargetEntityID   string         `json:"targetEntityId"`
	RelationshipType string         `json:"relationshipType"`
	Properties       map[string]any `json:"properties"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// SeedEntity is a fixture entity. Name becomes the canonical name.
type SeedEntity struct {
	ID         string         `mapstructure:"id"`
	Name       string         `mapstructure:"name"`
	Type       string         `mapstructure:"type"`
	Properties map[string]any `mapstructure:"properties"`
}

// SeedRelationship is a fixture edge between two seeded entities
type SeedRelationship struct {
	ID         string         `mapstructure:"id"`
	Source     string         `mapstructure:"source"`
	Target     string         `mapstructure:"target"`
	Type       string         `mapstructure:"type"`
	Properties map[string]any `mapstructure:"properties"`
}

// Seed is the knowledge graph loaded at startup
type Seed struct {
	Entities      []SeedEntity       `mapstructure:"entities"`
	Relationships []SeedRelationship `mapstructure:"relationships"`
}

// LoadSeedFile reads graph fixtures from a YAML file
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML fixtures. Properties are free-form, so the document
// is read generically first and then mapped onto the seed types.
func ParseSeed(data []byte) (*Seed, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	var seed Seed
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &seed,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	return &seed, nil
}

// Seed writes fixture entities and relationships. Missing IDs are generated;
// relationships must reference entities in the seed or already stored.
func (s *Server) Seed(ctx context.Context, seed *Seed) error {
	if seed == nil {
		return nil
	}

	now := time.Now().UTC()
	entities := make(map[string]any, len(seed.Entities))
	for i, e := range seed.Entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(e.Name) == "" {
			return errors.Newf(errors.KindValidation, "entity at index %d has no name", i)
		}
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		props := e.Properties
		if props == nil {
			props = map[string]any{}
		}
		entities[id] = entityDoc{
			ID:            id,
			CanonicalName: e.Name,
			Type:          e.Type,
			Properties:    props,
			CreatedAt:     now,
			UpdatedAt:     &now,
		}
	}

	exists := func(id string) (bool, error) {
		if _, ok := entities[id]; ok {
			return true, nil
		}
		rec, err := s.store.Get(ctx, collEntities, id)
		return rec != nil, err
	}

	rels := make(map[string]any, len(seed.Relationships))
	for i, r := range seed.Relationships {
		for _, end := range []string{r.Source, r.Target} {
			ok, err := exists(end)
			if err != nil {
				return errors.Wrap(err, errors.KindServer, "failed to read entities")
			}
			if !ok {
				return errors.Newf(errors.KindValidation, "relationship at index %d references unknown entity '%s'", i, end)
			}
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		props := r.Properties
		if props == nil {
			props = map[string]any{}
		}
		rels[id] = relationshipDoc{
			ID:               id,
			SourceEntityID:   r.Source,
			TargetEntityID:   r.Target,
			RelationshipType: r.Type,
			Properties:       props,
			CreatedAt:        now,
		}
	}

	if len(entities) > 0 {
		if err := s.putDocs(ctx, collEntities, entities); err != nil {
			return err
		}
	}
	if len(rels) > 0 {
		if err := s.putDocs(ctx, collRelationships, rels); err != nil {
			return err
		}
	}

	s.logger.Info("Knowledge graph seeded")
	return nil
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
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
	typ := r.URL.Query().Get("type")

	docs, err := listDocs[entityDoc](r.Context(), s.store, collEntities)
	if err != nil {
		s.writeError(w, err)
		return
	}

	filtered := make([]entityDoc, 0, len(docs))
	for _, d := range docs {
		if typ == "" || d.Type == typ {
			filtered = append(filtered, d)
		}
	}
	items, _ := page(filtered, limit, offset)
	s.writeJSON(w, http.StatusOK, map[string]any{"entities": items})
}

// handleSearchEntities matches a case-insensitive substring of the name
func (s *Server) handleSearchEntities(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	if query == "" {
		s.writeError(w, errors.New(errors.KindValidation, "query is required"))
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.writeError(w, err)
		return
	}
	typ := r.URL.Query().Get("type")

	docs, err := listDocs[entityDoc](r.Context(), s.store, collEntities)
	if err != nil {
		s.writeError(w, err)
		return
	}

	matches := make([]entityDoc, 0)
	for _, d := range docs {
		if typ != "" && d.Type != typ {
			continue
		}
		if strings.Contains(strings.ToLower(d.CanonicalName), query) {
			matches = append(matches, d)
		}
	}
	items, _ := page(matches, limit, 0)
	s.writeJSON(w, http.StatusOK, map[string]any{"entities": items})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	var doc entityDoc
	found, err := s.getDoc(r.Context(), collEntities, r.PathValue("id"), &doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errors.New(errors.KindNotFound, "Entity not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleEntityRelationships(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "both"
	}
	if direction != "incoming" && direction != "outgoing" && direction != "both" {
		s.writeError(w, errors.Newf(errors.KindValidation, "direction must be one of [incoming, outgoing, both], got '%s'", direction))
		return
	}
	typ := r.URL.Query().Get("type")

	var entity entityDoc
	found, err := s.getDoc(r.Context(), collEntities, id, &entity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errors.New(errors.KindNotFound, "Entity not found"))
		return
	}

	rels, err := listDocs[relationshipDoc](r.Context(), s.store, collRelationships)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]relationshipDoc, 0)
	for _, rel := range rels {
		if typ != "" && rel.RelationshipType != typ {
			continue
		}
		outgoing := rel.SourceEntityID == id
		incoming := rel.TargetEntityID == id
		switch direction {
		case "outgoing":
			if outgoing {
				out = append(out, rel)
			}
		case "incoming":
			if incoming {
				out = append(out, rel)
			}
		default:
			if outgoing || incoming {
				out = append(out, rel)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"relationships": out})
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
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
	typ := r.URL.Query().Get("type")

	docs, err := listDocs[relationshipDoc](r.Context(), s.store, collRelationships)
	if err != nil {
		s.writeError(w, err)
		return
	}

	filtered := make([]relationshipDoc, 0, len(docs))
	for _, d := range docs {
		if typ == "" || d.RelationshipType == typ {
			filtered = append(filtered, d)
		}
	}
	items, _ := page(filtered, limit, offset)
	s.writeJSON(w, http.StatusOK, map[string]any{"relationships": items})
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	var doc relationshipDoc
	found, err := s.getDoc(r.Context(), collRelationships, r.PathValue("id"), &doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errors.New(errors.KindNotFound, "Relationship not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleFindPath runs a breadth-first search over edges in either direction
func (s *Server) handleFindPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeError(w, errors.New(errors.KindValidation, "from and to are required"))
		return
	}
	maxDepth, err := queryInt(r, "max_depth", 5)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var allowed map[string]bool
	if raw := q.Get("relationship_types"); raw != "" {
		allowed = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				allowed[t] = true
			}
		}
	}

	entities, err := listDocs[entityDoc](r.Context(), s.store, collEntities)
	if err != nil {
		s.writeError(w, err)
		return
	}
	byID := make(map[string]entityDoc, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	for _, id := range []string{from, to} {
		if _, ok := byID[id]; !ok {
			s.writeError(w, errors.Newf(errors.KindNotFound, "Entity %s not found", id))
			return
		}
	}

	rels, err := listDocs[relationshipDoc](r.Context(), s.store, collRelationships)
	if err != nil {
		s.writeError(w, err)
		return
	}

	path := shortestPath(from, to, maxDepth, rels, allowed)
	if path == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"path": false, "entities": []entityDoc{}, "relationships": []relationshipDoc{}})
		return
	}

	pathEntities := make([]entityDoc, 0, len(path)+1)
	pathEntities = append(pathEntities, byID[from])
	current := from
	for _, rel := range path {
		next := rel.TargetEntityID
		if next == current {
			next = rel.SourceEntityID
		}
		pathEntities = append(pathEntities, byID[next])
		current = next
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"path":          true,
		"entities":      pathEntities,
		"relationships": path,
	})
}

// pathStep records how the search reached an entity
type pathStep struct {
	prev string
	via  relationshipDoc
}

// shortestPath returns the edges of a shortest path from one entity to
// another, nil when none exists within maxDepth hops
func shortestPath(from, to string, maxDepth int, rels []relationshipDoc, allowed map[string]bool) []relationshipDoc {
	if from == to {
		return []relationshipDoc{}
	}

	adjacent := make(map[string][]relationshipDoc)
	for _, rel := range rels {
		if allowed != nil && !allowed[rel.RelationshipType] {
			continue
		}
		adjacent[rel.SourceEntityID] = append(adjacent[rel.SourceEntityID], rel)
		adjacent[rel.TargetEntityID] = append(adjacent[rel.TargetEntityID], rel)
	}
	for _, edges := range adjacent {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}

	visited := map[string]pathStep{from: {}}
	frontier := []string{from}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, rel := range adjacent[node] {
				other := rel.TargetEntityID
				if other == node {
					other = rel.SourceEntityID
				}
				if _, seen := visited[other]; seen {
					continue
				}
				visited[other] = pathStep{prev: node, via: rel}
				if other == to {
					return unwind(visited, from, to)
				}
				next = append(next, other)
			}
		}
		frontier = next
	}
	return nil
}

func unwind(visited map[string]pathStep, from, to string) []relationshipDoc {
	var path []relationshipDoc
	for node := to; node != from; node = visited[node].prev {
		path = append(path, visited[node].via)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
