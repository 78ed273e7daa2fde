package knowledge

import "time"

// Document is one indexable chunk of knowledge. Metadata must be
// map[string]string to satisfy chromem-go.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
	CreateAt time.Time
}

// Result is a single search hit with its cosine similarity score.
// Scores range from 0 to 1; higher means more relevant.
type Result struct {
	Document   Document
	Similarity float32
}

// Metadata keys set by the document builders.
const (
	MetaSource     = "source"
	MetaTable      = "table"
	MetaDatasource = "datasource"
)

// Values for the MetaSource metadata key.
const (
	SourceSchema     = "schema"
	SourceSampleData = "sample_data"
)

// State describes the lifecycle of a knowledge base.
type State int

const (
	// StateUninitialized means no index exists yet for the base.
	StateUninitialized State = iota

	// StateInitializing means a build or load is in flight.
	StateInitializing

	// StateReady means the base is searchable.
	StateReady

	// StateFailed means the last build or load attempt errored.
	StateFailed
)

// String returns the lowercase label used in logs and API responses.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Info is a point-in-time status snapshot of a knowledge base.
type Info struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind"`
	Collection  string    `json:"collection"`
	State       string    `json:"state"`
	Documents   int       `json:"documents"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// SearchOption configures search behavior.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int
	threshold float32
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold drops results whose similarity is below t.
// Default is 0, keeping everything the index returns.
func WithThreshold(t float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
