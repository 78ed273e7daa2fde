package knowledge

import (
	"context"
	"fmt"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tanuki0/tanuki/internal/datasource"
	"github.com/tanuki0/tanuki/internal/log"
)

// Registry holds one knowledge base per enabled data source. The
// base map is built once at construction and never mutated, so the
// registry itself needs no locking; each Base guards its own state.
type Registry struct {
	sources *datasource.Registry
	bases   map[string]*Base
	logger  log.Logger
}

// NamedResult is a search hit tagged with the base that produced it.
type NamedResult struct {
	KnowledgeBase string
	Result
}

// NewRegistry builds a registry over the enabled data sources.
// Disabled sources get no base and are reported as ErrDisabled on
// access.
func NewRegistry(sources *datasource.Registry, db *chromem.DB, embed chromem.EmbeddingFunc, logger log.Logger) *Registry {
	bases := make(map[string]*Base)
	for _, desc := range sources.Enabled() {
		index := NewIndex(db, desc.CollectionName(), embed)
		bases[desc.Name] = NewBase(desc, index, logger)
	}
	return &Registry{
		sources: sources,
		bases:   bases,
		logger:  logger,
	}
}

// Get returns the named base. Unknown names yield ErrNotFound;
// names of disabled sources yield ErrDisabled.
func (r *Registry) Get(name string) (*Base, error) {
	if base, ok := r.bases[name]; ok {
		return base, nil
	}
	if _, err := r.sources.Get(name); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDisabled, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Names returns all base names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bases))
	for name := range r.bases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns status snapshots of every base, sorted by name.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.bases))
	for _, name := range r.Names() {
		infos = append(infos, r.bases[name].Info())
	}
	return infos
}

// FirstReady returns the ready base that sorts first by name.
func (r *Registry) FirstReady() (*Base, bool) {
	for _, name := range r.Names() {
		if base := r.bases[name]; base.State() == StateReady {
			return base, true
		}
	}
	return nil, false
}

// Initialize builds the named base from its live data source. An
// already ready base is left untouched unless force is set.
func (r *Registry) Initialize(ctx context.Context, name string, force bool) error {
	base, err := r.Get(name)
	if err != nil {
		return err
	}
	if !force && base.State() == StateReady {
		return nil
	}
	return base.Initialize(ctx)
}

// InitializeAll builds every base, skipping ones that are already
// ready unless force is set. One base failing never aborts the rest;
// the outcome of each is collected in the result.
func (r *Registry) InitializeAll(ctx context.Context, force bool) *BatchResult {
	result := &BatchResult{Failed: make(map[string]error)}
	for _, name := range r.Names() {
		base := r.bases[name]
		if !force && base.State() == StateReady {
			result.Ready = append(result.Ready, name)
			continue
		}
		if err := base.Initialize(ctx); err != nil {
			result.Failed[name] = err
			continue
		}
		result.Ready = append(result.Ready, name)
	}
	return result
}

// LoadAll attaches every base to its persisted collection. Bases
// with no persisted collection are reported as failed, not fatal;
// they can be built later through Initialize.
func (r *Registry) LoadAll(ctx context.Context) *BatchResult {
	result := &BatchResult{Failed: make(map[string]error)}
	for _, name := range r.Names() {
		if err := r.bases[name].Load(ctx); err != nil {
			result.Failed[name] = err
			continue
		}
		result.Ready = append(result.Ready, name)
	}
	return result
}

// Search queries the named base.
func (r *Registry) Search(ctx context.Context, name, query string, opts ...SearchOption) ([]Result, error) {
	base, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return base.Search(ctx, query, opts...)
}

// SearchAll fans the query out across every ready base and merges
// the hits, best first. A base that errors is logged and omitted;
// the remaining bases still answer.
func (r *Registry) SearchAll(ctx context.Context, query string, opts ...SearchOption) []NamedResult {
	var merged []NamedResult
	for _, name := range r.Names() {
		base := r.bases[name]
		if base.State() != StateReady {
			continue
		}
		results, err := base.Search(ctx, query, opts...)
		if err != nil {
			r.logger.Warn("search failed, omitting knowledge base",
				"knowledge_base", name, "error", err)
			continue
		}
		for _, res := range results {
			merged = append(merged, NamedResult{KnowledgeBase: name, Result: res})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	return merged
}
