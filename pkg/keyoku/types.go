package keyoku

import "time"

// Memory is a stored fact extracted from remembered content
type Memory struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	AgentID    string    `json:"agentId,omitempty"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MemorySearchResult is a memory with its relevance score
type MemorySearchResult struct {
	Memory
	Score float64 `json:"score"`
}

// ListMemoriesResponse is one page of memories
type ListMemoriesResponse struct {
	Memories []Memory `json:"memories"`
	Total    int      `json:"total"`
	HasMore  bool     `json:"hasMore"`
}

// SearchResponse holds ranked search hits
type SearchResponse struct {
	Memories    []MemorySearchResult `json:"memories"`
	QueryTimeMs float64              `json:"queryTimeMs"`
}

// Stats summarizes stored memories
type Stats struct {
	TotalMemories int            `json:"totalMemories"`
	ByType        map[string]int `json:"byType"`
}

// SearchMode selects the search strategy
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeHybrid   SearchMode = "hybrid"
)

// RememberOptions attribute remembered content
type RememberOptions struct {
	SessionID string
	AgentID   string
}

// SearchOptions tune Search. Zero values take the defaults.
type SearchOptions struct {
	Limit   int
	Mode    SearchMode
	AgentID string
}

// ListOptions page through memories
type ListOptions struct {
	Limit   int
	Offset  int
	AgentID string
}

type rememberRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

type searchRequest struct {
	Query   string     `json:"query"`
	Limit   int        `json:"limit"`
	Mode    SearchMode `json:"mode"`
	AgentID string     `json:"agent_id,omitempty"`
}

// Entity is a node in the knowledge graph
type Entity struct {
	ID            string         `json:"id"`
	CanonicalName string         `json:"canonicalName"`
	Type          string         `json:"type"`
	Properties    map[string]any `json:"properties"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

// Relationship is a directed edge between two entities
type Relationship struct {
	ID               string         `json:"id"`
	SourceEntityID   string         `json:"sourceEntityId"`
	TargetEntityID   string         `json:"targetEntityId"`
	RelationshipType string         `json:"relationshipType"`
	Properties       map[string]any `json:"properties"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// EntityListOptions page through entities or relationships
type EntityListOptions struct {
	Limit  int
	Offset int
	Type   string
}

// EntitySearchOptions filter an entity name search
type EntitySearchOptions struct {
	Limit int
	Type  string
}

// Direction selects which edges of an entity to follow
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionBoth     Direction = "both"
)

// RelationshipOptions filter an entity's relationships
type RelationshipOptions struct {
	Direction Direction
	Type      string
}

// FindPathOptions bound a path search
type FindPathOptions struct {
	MaxDepth          int
	RelationshipTypes []string
}

// PathResult is the chain of entities and edges joining two entities
type PathResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Length        int            `json:"length"`
}

// Schema is a named JSON schema registered for extraction
type Schema struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateSchemaRequest registers a schema
type CreateSchemaRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
}

// UpdateSchemaRequest changes a schema. Nil fields are left alone.
type UpdateSchemaRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// AuditLog records one mutating operation
type AuditLog struct {
	ID           string         `json:"id"`
	Operation    string         `json:"operation"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsResponse is one page of audit logs
type AuditLogsResponse struct {
	AuditLogs []AuditLog `json:"audit_logs"`
	Total     int        `json:"total"`
	HasMore   bool       `json:"has_more"`
}

// AuditLogsQuery filters audit logs. Zero fields are not sent.
type AuditLogsQuery struct {
	Operation    string
	ResourceType string
	StartDate    time.Time
	EndDate      time.Time
	Limit        int
	Offset       int
}

// CleanupStrategy selects which memories a cleanup removes
type CleanupStrategy string

const (
	CleanupStale         CleanupStrategy = "stale"
	CleanupLowImportance CleanupStrategy = "low_importance"
	CleanupOldest        CleanupStrategy = "oldest"
	CleanupNeverAccessed CleanupStrategy = "never_accessed"
)

// CleanupSuggestion describes a strategy and how many memories it would hit
type CleanupSuggestion struct {
	Strategy    CleanupStrategy `json:"strategy"`
	Description string          `json:"description"`
	Count       int             `json:"count"`
}

// CleanupUsage reports storage consumption against the quota
type CleanupUsage struct {
	MemoriesStored int     `json:"memories_stored"`
	MemoriesLimit  int     `json:"memories_limit"`
	Percentage     float64 `json:"percentage"`
}

// CleanupSuggestionsResponse lists available strategies
type CleanupSuggestionsResponse struct {
	Suggestions []CleanupSuggestion `json:"suggestions"`
	Usage       CleanupUsage        `json:"usage"`
}

// CleanupRequest runs a cleanup strategy
type CleanupRequest struct {
	Strategy CleanupStrategy `json:"strategy"`
	Limit    int             `json:"limit,omitempty"`
	DryRun   bool            `json:"dry_run,omitempty"`
}

// CleanupResponse reports what a cleanup removed, or would remove on a dry run
type CleanupResponse struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids,omitempty"`
}

// BatchMemory is one item of a batch create
type BatchMemory struct {
	Content string `json:"content"`
}

// BatchCreateOptions attribute a batch create
type BatchCreateOptions struct {
	SessionID string
	AgentID   string
}

type batchCreateRequest struct {
	Memories  []BatchMemory `json:"memories"`
	SessionID string        `json:"session_id,omitempty"`
	AgentID   string        `json:"agent_id,omitempty"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}
