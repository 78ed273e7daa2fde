package knowledge

import (
	"context"
	"errors"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tanuki0/tanuki/internal/datasource"
	"github.com/tanuki0/tanuki/internal/log"
	"github.com/tanuki0/tanuki/internal/schema"
)

// fakeSource is an in-memory schema.Source for exercising base
// builds without a database.
type fakeSource struct {
	snap       *schema.Snapshot
	rows       map[string][]schema.Row
	connectErr error
	sampleErr  map[string]error
	closed     bool
}

func (f *fakeSource) Connect(context.Context) error { return f.connectErr }

func (f *fakeSource) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeSource) Snapshot(context.Context) (*schema.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeSource) SampleRows(_ context.Context, table string, _ int) ([]schema.Row, error) {
	if err := f.sampleErr[table]; err != nil {
		return nil, err
	}
	return f.rows[table], nil
}

func testDescriptor(name string) datasource.Descriptor {
	return datasource.Descriptor{
		Name:       name,
		Kind:       "mysql",
		Connection: map[string]any{"database": name},
	}
}

// newTestBase wires a base to a fake source and an in-memory vector
// store with deterministic embeddings.
func newTestBase(t *testing.T, desc datasource.Descriptor, src *fakeSource) *Base {
	t.Helper()
	index := NewIndex(chromem.NewDB(), desc.CollectionName(), stubEmbedding(testVectors))
	base := NewBase(desc, index, log.NewNop())
	base.open = func(string, map[string]any) (schema.Source, error) {
		return src, nil
	}
	return base
}

func fakeShopSource() *fakeSource {
	return &fakeSource{
		snap: &schema.Snapshot{Tables: []schema.Table{
			{Name: "alpha", Columns: []schema.Column{{Name: "id", Type: "int", Key: schema.KeyPrimary}}},
			{Name: "beta", Columns: []schema.Column{{Name: "id", Type: "int", Key: schema.KeyPrimary}}},
		}},
		rows: map[string][]schema.Row{
			"alpha": {{"id": 1}},
		},
	}
}

func TestBaseInitialize(t *testing.T) {
	src := fakeShopSource()
	base := newTestBase(t, testDescriptor("shop_db"), src)

	if err := base.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := base.State(); got != StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
	if !src.closed {
		t.Error("source was not closed")
	}

	// Two schema documents plus one sample document; beta has no
	// rows so no sample chunk is produced for it.
	info := base.Info()
	if info.Documents != 3 {
		t.Errorf("Documents = %d, want 3", info.Documents)
	}
	if info.State != "ready" || info.Error != "" {
		t.Errorf("info = %+v", info)
	}

	results, err := base.Search(context.Background(), "alpha", WithTopK(1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results from ready base")
	}
}

func TestBaseInitializeIdempotent(t *testing.T) {
	base := newTestBase(t, testDescriptor("shop_db"), fakeShopSource())

	ctx := context.Background()
	if err := base.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	first := base.Info().Documents

	if err := base.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if got := base.Info().Documents; got != first {
		t.Errorf("document count changed on rebuild: %d -> %d", first, got)
	}
}

func TestBaseInitializeConnectError(t *testing.T) {
	src := fakeShopSource()
	src.connectErr = errors.New("connection refused")
	base := newTestBase(t, testDescriptor("shop_db"), src)

	if err := base.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if got := base.State(); got != StateFailed {
		t.Errorf("state = %s, want failed", got)
	}
	if info := base.Info(); info.Error == "" {
		t.Error("info carries no error message")
	}

	if _, err := base.Search(context.Background(), "alpha"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Search error = %v, want ErrNotReady", err)
	}
}

func TestBaseSampleFailureSkipsTable(t *testing.T) {
	src := fakeShopSource()
	src.sampleErr = map[string]error{"alpha": errors.New("permission denied")}
	base := newTestBase(t, testDescriptor("shop_db"), src)

	if err := base.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// Both schema documents survive; the failed sample is skipped.
	if got := base.Info().Documents; got != 2 {
		t.Errorf("Documents = %d, want 2", got)
	}
	if got := base.State(); got != StateReady {
		t.Errorf("state = %s, want ready", got)
	}
}

func TestBaseExcludedTables(t *testing.T) {
	desc := testDescriptor("shop_db")
	desc.Policy.ExcludeTables = []string{"beta"}
	base := newTestBase(t, desc, fakeShopSource())

	if err := base.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// One schema document plus alpha's sample.
	if got := base.Info().Documents; got != 2 {
		t.Errorf("Documents = %d, want 2", got)
	}
}

func TestBaseSearchUninitialized(t *testing.T) {
	base := newTestBase(t, testDescriptor("shop_db"), fakeShopSource())
	if _, err := base.Search(context.Background(), "alpha"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Search error = %v, want ErrNotReady", err)
	}
}

func TestBaseLoad(t *testing.T) {
	db := chromem.NewDB()
	desc := testDescriptor("shop_db")

	builder := NewBase(desc, NewIndex(db, desc.CollectionName(), stubEmbedding(testVectors)), log.NewNop())
	builder.open = func(string, map[string]any) (schema.Source, error) {
		return fakeShopSource(), nil
	}
	if err := builder.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// A second base over the same store attaches without touching
	// the data source.
	loaded := NewBase(desc, NewIndex(db, desc.CollectionName(), stubEmbedding(testVectors)), log.NewNop())
	if err := loaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.State(); got != StateReady {
		t.Errorf("state = %s, want ready", got)
	}
}

func TestBaseLoadMissingCollection(t *testing.T) {
	base := newTestBase(t, testDescriptor("shop_db"), fakeShopSource())
	if err := base.Load(context.Background()); !errors.Is(err, ErrNoCollection) {
		t.Errorf("Load error = %v, want ErrNoCollection", err)
	}
	if got := base.State(); got != StateFailed {
		t.Errorf("state = %s, want failed", got)
	}
}

func TestBaseDrop(t *testing.T) {
	base := newTestBase(t, testDescriptor("shop_db"), fakeShopSource())

	if err := base.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := base.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := base.State(); got != StateUninitialized {
		t.Errorf("state = %s, want uninitialized", got)
	}
}
