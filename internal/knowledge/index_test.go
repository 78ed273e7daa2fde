package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
)

// stubEmbedding maps texts to fixed unit vectors by substring so
// similarity is fully predictable: identical vectors score 1,
// orthogonal vectors score 0.
func stubEmbedding(vectors map[string][]float32) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		for key, vec := range vectors {
			if strings.Contains(text, key) {
				return vec, nil
			}
		}
		return []float32{0, 0, 1}, nil
	}
}

var testVectors = map[string][]float32{
	"alpha": {1, 0, 0},
	"beta":  {0, 1, 0},
}

func testDocs() []Document {
	return []Document{
		{ID: "db:schema:alpha", Content: "alpha table", Metadata: map[string]string{MetaTable: "alpha"}},
		{ID: "db:schema:beta", Content: "beta table", Metadata: map[string]string{MetaTable: "beta"}},
	}
}

func TestIndexCreateAndSearch(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))

	ctx := context.Background()
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := ix.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	results, err := ix.Search(ctx, "tell me about alpha", WithTopK(2))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Document.ID != "db:schema:alpha" {
		t.Errorf("best hit = %q, want the alpha document", results[0].Document.ID)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("best similarity = %f, want ~1", results[0].Similarity)
	}
	if results[0].Document.Metadata[MetaTable] != "alpha" {
		t.Errorf("metadata lost: %v", results[0].Document.Metadata)
	}
}

func TestIndexSearchThreshold(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))

	ctx := context.Background()
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	results, err := ix.Search(ctx, "alpha", WithTopK(5), WithThreshold(0.9))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results above threshold, want 1", len(results))
	}
	if results[0].Document.ID != "db:schema:alpha" {
		t.Errorf("hit = %q", results[0].Document.ID)
	}
}

func TestIndexSearchClampsTopK(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))

	ctx := context.Background()
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Asking for more results than documents must not error.
	results, err := ix.Search(ctx, "alpha", WithTopK(50))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestIndexCreateReplaces(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))

	ctx := context.Background()
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := ix.Create(ctx, testDocs()[:1]); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if got := ix.Count(); got != 1 {
		t.Errorf("Count after rebuild = %d, want 1", got)
	}
}

func TestIndexSearchWithoutCollection(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))
	if _, err := ix.Search(context.Background(), "alpha"); !errors.Is(err, ErrNoCollection) {
		t.Errorf("Search error = %v, want ErrNoCollection", err)
	}
}

func TestIndexLoadMissing(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_missing", stubEmbedding(testVectors))
	if err := ix.Load(context.Background()); !errors.Is(err, ErrNoCollection) {
		t.Errorf("Load error = %v, want ErrNoCollection", err)
	}
}

func TestIndexDrop(t *testing.T) {
	ix := NewIndex(chromem.NewDB(), "kb_test", stubEmbedding(testVectors))

	ctx := context.Background()
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ix.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := ix.Count(); got != 0 {
		t.Errorf("Count after drop = %d, want 0", got)
	}
	// Dropping again is a no-op.
	if err := ix.Drop(); err != nil {
		t.Errorf("second Drop: %v", err)
	}
}

func TestPersistentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewVectorDB(BackendPersistent, dir)
	if err != nil {
		t.Fatalf("NewVectorDB: %v", err)
	}
	ix := NewIndex(db, "kb_shop", stubEmbedding(testVectors))
	if err := ix.Create(ctx, testDocs()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A fresh handle over the same directory must see the collection.
	db2, err := NewVectorDB(BackendPersistent, dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	ix2 := NewIndex(db2, "kb_shop", stubEmbedding(testVectors))
	if err := ix2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := ix2.Count(); got != 2 {
		t.Fatalf("Count after reload = %d, want 2", got)
	}

	results, err := ix2.Search(ctx, "beta", WithTopK(1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "db:schema:beta" {
		t.Errorf("reloaded search = %+v", results)
	}
}

func TestNewVectorDBUnknownBackend(t *testing.T) {
	if _, err := NewVectorDB("redis", ""); err == nil {
		t.Error("expected an error for unknown backend")
	}
}
