package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tanuki0/tanuki/internal/datasource"
	"github.com/tanuki0/tanuki/internal/log"
	"github.com/tanuki0/tanuki/internal/schema"
)

// Base is the knowledge base of a single data source. It owns the
// source's vector index and tracks the build lifecycle.
//
// Base is safe for concurrent use. Initialize and Load serialize
// against each other and against Search through the state mutex;
// the embedding and indexing work itself runs outside the lock.
type Base struct {
	desc   datasource.Descriptor
	index  *Index
	open   func(kind string, params map[string]any) (schema.Source, error)
	logger log.Logger

	mu        sync.RWMutex
	state     State
	lastErr   error
	updatedAt time.Time
}

// NewBase creates a base in the uninitialized state.
func NewBase(desc datasource.Descriptor, index *Index, logger log.Logger) *Base {
	return &Base{
		desc:   desc,
		index:  index,
		open:   schema.Open,
		logger: logger.With("knowledge_base", desc.Name),
		state:  StateUninitialized,
	}
}

// Name returns the data source name the base serves.
func (b *Base) Name() string { return b.desc.Name }

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Info returns a status snapshot for listings and health output.
func (b *Base) Info() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()

	info := Info{
		Name:        b.desc.Name,
		DisplayName: b.desc.DisplayName,
		Description: b.desc.Description,
		Kind:        b.desc.Kind,
		Collection:  b.desc.CollectionName(),
		State:       b.state.String(),
		Documents:   b.index.Count(),
		UpdatedAt:   b.updatedAt,
	}
	if b.lastErr != nil {
		info.Error = b.lastErr.Error()
	}
	return info
}

// begin transitions the base into the initializing state, refusing
// when another build or load is already in flight.
func (b *Base) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateInitializing {
		return fmt.Errorf("%w: initialization in progress", ErrNotReady)
	}
	b.state = StateInitializing
	return nil
}

func (b *Base) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updatedAt = time.Now()
	if err != nil {
		b.state = StateFailed
		b.lastErr = err
		return
	}
	b.state = StateReady
	b.lastErr = nil
}

// Initialize builds the base from the live data source: snapshot the
// structure, render documents, embed and index them. Any previous
// collection content under the same name is replaced, so repeated
// calls converge to the same index.
func (b *Base) Initialize(ctx context.Context) error {
	if err := b.begin(); err != nil {
		return err
	}

	err := b.build(ctx)
	b.finish(err)
	if err != nil {
		b.logger.Error("knowledge base build failed", "error", err)
		return err
	}

	b.logger.Info("knowledge base ready",
		"collection", b.index.Name(),
		"documents", b.index.Count())
	return nil
}

func (b *Base) build(ctx context.Context) error {
	src, err := b.open(b.desc.Kind, b.desc.Connection)
	if err != nil {
		return err
	}
	if err := src.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %q: %w", b.desc.Name, err)
	}
	defer func() {
		if err := src.Close(ctx); err != nil {
			b.logger.Warn("closing data source", "error", err)
		}
	}()

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshotting %q: %w", b.desc.Name, err)
	}

	docs := BuildSchemaDocuments(b.desc.Name, snap,
		b.desc.Policy.IncludeTables, b.desc.Policy.ExcludeTables)
	if len(docs) == 0 {
		return fmt.Errorf("%w: no tables to index in %q", schema.ErrSchema, b.desc.Name)
	}

	if b.desc.IncludeSamples() {
		docs = append(docs, b.sampleDocuments(ctx, src, docs)...)
	}

	if err := b.index.Create(ctx, docs); err != nil {
		return err
	}
	return nil
}

// sampleDocuments fetches sample rows for each indexed table. A
// sampling failure skips that table rather than failing the build;
// schema documents are still worth having without samples.
func (b *Base) sampleDocuments(ctx context.Context, src schema.Source, schemaDocs []Document) []Document {
	limit := b.desc.SampleLimit()
	out := make([]Document, 0, len(schemaDocs))
	for _, doc := range schemaDocs {
		table := doc.Metadata[MetaTable]
		rows, err := src.SampleRows(ctx, table, limit)
		if err != nil {
			b.logger.Warn("sampling table failed, skipping", "table", table, "error", err)
			continue
		}
		if sample, ok := BuildSampleDocument(b.desc.Name, table, rows); ok {
			out = append(out, sample)
		}
	}
	return out
}

// Load attaches the base to a previously persisted collection
// without touching the data source.
func (b *Base) Load(ctx context.Context) error {
	if err := b.begin(); err != nil {
		return err
	}

	err := b.index.Load(ctx)
	b.finish(err)
	if err != nil {
		return err
	}

	b.logger.Info("knowledge base loaded",
		"collection", b.index.Name(),
		"documents", b.index.Count())
	return nil
}

// Search queries the base. Only a ready base serves searches.
func (b *Base) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	b.mu.RLock()
	state := b.state
	b.mu.RUnlock()

	if state != StateReady {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotReady, b.desc.Name, state)
	}
	return b.index.Search(ctx, query, opts...)
}

// Drop removes the base's collection and resets it to uninitialized.
func (b *Base) Drop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.index.Drop(); err != nil {
		return err
	}
	b.state = StateUninitialized
	b.lastErr = nil
	b.updatedAt = time.Now()
	return nil
}
