package knowledge

import (
	"context"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// Store backend kinds.
const (
	BackendPersistent = "persistent"
	BackendMemory     = "memory"
)

// NewVectorDB opens the vector database shared by all knowledge
// bases. The persistent backend survives restarts; the memory backend
// starts empty every run.
func NewVectorDB(backend, dir string) (*chromem.DB, error) {
	switch backend {
	case BackendPersistent:
		db, err := chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector store at %q: %w", dir, err)
		}
		return db, nil
	case BackendMemory:
		return chromem.NewDB(), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", backend)
	}
}

// Index is one named collection inside the shared vector database.
// Create and Load are not safe for concurrent use with each other;
// the registry serializes them per base. Search is safe once the
// index holds a collection.
type Index struct {
	db    *chromem.DB
	name  string
	embed chromem.EmbeddingFunc
	col   *chromem.Collection
}

// NewIndex prepares an index over the named collection. The
// collection itself is not touched until Create or Load.
func NewIndex(db *chromem.DB, name string, embed chromem.EmbeddingFunc) *Index {
	return &Index{db: db, name: name, embed: embed}
}

// Name returns the collection name.
func (ix *Index) Name() string { return ix.name }

// Count returns the number of indexed documents, 0 when no
// collection is attached.
func (ix *Index) Count() int {
	if ix.col == nil {
		return 0
	}
	return ix.col.Count()
}

// Create builds the collection from scratch, replacing any previous
// content under the same name, and indexes docs.
func (ix *Index) Create(ctx context.Context, docs []Document) error {
	if err := ix.db.DeleteCollection(ix.name); err != nil {
		return fmt.Errorf("resetting collection %q: %w", ix.name, err)
	}

	col, err := ix.db.CreateCollection(ix.name, nil, ix.embed)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", ix.name, err)
	}
	ix.col = col

	return ix.Add(ctx, docs)
}

// Load attaches to an existing collection. Returns ErrNoCollection
// when nothing persisted exists under the index's name.
func (ix *Index) Load(context.Context) error {
	col := ix.db.GetCollection(ix.name, ix.embed)
	if col == nil {
		return fmt.Errorf("%w: %q", ErrNoCollection, ix.name)
	}
	ix.col = col
	return nil
}

// Add embeds and indexes docs into the attached collection.
func (ix *Index) Add(ctx context.Context, docs []Document) error {
	if ix.col == nil {
		return fmt.Errorf("%w: %q", ErrNoCollection, ix.name)
	}
	if len(docs) == 0 {
		return nil
	}

	converted := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		converted[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}

	if err := ix.col.AddDocuments(ctx, converted, runtime.NumCPU()); err != nil {
		return fmt.Errorf("indexing %d documents into %q: %w", len(docs), ix.name, err)
	}
	return nil
}

// Search returns the documents most similar to query, best first.
// The result count is clamped to the collection size, and hits below
// the threshold are dropped.
func (ix *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if ix.col == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoCollection, ix.name)
	}

	cfg := buildSearchConfig(opts)

	n := cfg.topK
	if count := ix.col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	hits, err := ix.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", ix.name, err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < cfg.threshold {
			continue
		}
		results = append(results, Result{
			Document: Document{
				ID:       hit.ID,
				Content:  hit.Content,
				Metadata: hit.Metadata,
			},
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// Drop removes the collection and detaches the index. Dropping a
// collection that does not exist is a no-op.
func (ix *Index) Drop() error {
	if err := ix.db.DeleteCollection(ix.name); err != nil {
		return fmt.Errorf("dropping collection %q: %w", ix.name, err)
	}
	ix.col = nil
	return nil
}
