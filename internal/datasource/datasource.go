// Package datasource loads and validates the set of named data-source
// descriptors that drive knowledge base construction.
//
// Descriptors live in a YAML file (see datasources.yaml for a
// sample). Each descriptor names one database, its connection
// parameters and the indexing policy for its knowledge base. The file
// is read once at startup; descriptors are immutable afterwards.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound indicates the requested data source does not exist.
	ErrNotFound = errors.New("data source not found")

	// ErrDuplicateName indicates two descriptors share a name.
	ErrDuplicateName = errors.New("duplicate data source name")

	// ErrInvalidDescriptor indicates a descriptor is missing required
	// fields or is otherwise malformed.
	ErrInvalidDescriptor = errors.New("invalid data source descriptor")
)

// Source kind identifiers used in Descriptor.Kind.
const (
	KindMySQL    = "mysql"
	KindPostgres = "postgres"
	KindMongoDB  = "mongodb"
)

// DefaultSampleLimit is the number of sample rows indexed per table
// when the policy does not override it.
const DefaultSampleLimit = 5

// Policy controls how a data source is turned into a knowledge base.
type Policy struct {
	// CollectionName overrides the derived collection name.
	CollectionName string `yaml:"collection_name"`

	// IncludeSampleData enables indexing of sampled rows. Defaults to
	// true when absent.
	IncludeSampleData *bool `yaml:"include_sample_data"`

	// SampleDataLimit caps the rows sampled per table. Defaults to
	// DefaultSampleLimit when zero or negative.
	SampleDataLimit int `yaml:"sample_data_limit"`

	// IncludeTables, when non-empty, restricts indexing to exactly
	// these tables. ExcludeTables is ignored in that case.
	IncludeTables []string `yaml:"include_tables"`

	// ExcludeTables drops the named tables from indexing.
	ExcludeTables []string `yaml:"exclude_tables"`
}

// Descriptor identifies one schema source and its indexing policy.
// Immutable after load.
type Descriptor struct {
	Name        string         `yaml:"name"`
	DisplayName string         `yaml:"display_name"`
	Description string         `yaml:"description"`
	Kind        string         `yaml:"type"`
	Enabled     *bool          `yaml:"enabled"`
	Connection  map[string]any `yaml:"connection"`
	Policy      Policy         `yaml:"knowledge_base"`
}

// CollectionName returns the embedding collection name for this
// descriptor: the policy override when set, otherwise kb_<name>.
// The derivation is a pure function of the descriptor so collection
// names are stable across restarts.
func (d *Descriptor) CollectionName() string {
	if d.Policy.CollectionName != "" {
		return d.Policy.CollectionName
	}
	return "kb_" + d.Name
}

// IsEnabled reports whether the source participates in batch
// operations. Absent means enabled.
func (d *Descriptor) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// IncludeSamples reports whether sampled rows should be indexed.
func (d *Descriptor) IncludeSamples() bool {
	return d.Policy.IncludeSampleData == nil || *d.Policy.IncludeSampleData
}

// SampleLimit returns the per-table row sample cap.
func (d *Descriptor) SampleLimit() int {
	if d.Policy.SampleDataLimit <= 0 {
		return DefaultSampleLimit
	}
	return d.Policy.SampleDataLimit
}

// Registry owns the loaded descriptor set and provides lookups.
type Registry struct {
	descriptors []Descriptor
	byName      map[string]int
}

// file mirrors the on-disk YAML layout.
type file struct {
	DataSources []Descriptor `yaml:"datasources"`
}

// Load reads a descriptor file, resolves environment placeholders in
// connection parameters and validates the result.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data source file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw YAML. Split out from Load for
// tests and embedded configuration.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidDescriptor, err)
	}

	for i := range f.DataSources {
		d := &f.DataSources[i]
		if d.DisplayName == "" {
			d.DisplayName = d.Name
		}
		d.Connection = expandEnv(d.Connection)
	}

	return New(f.DataSources)
}

// New validates an already-decoded descriptor slice and builds the
// Registry around it.
func New(descriptors []Descriptor) (*Registry, error) {
	byName := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: descriptor %d has no name", ErrInvalidDescriptor, i)
		}
		if d.Kind == "" {
			return nil, fmt.Errorf("%w: %q has no type", ErrInvalidDescriptor, d.Name)
		}
		if _, ok := byName[d.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}
		byName[d.Name] = i
	}

	return &Registry{descriptors: descriptors, byName: byName}, nil
}

// All returns every descriptor in file order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Enabled returns the descriptors that participate in batch
// operations, in file order.
func (r *Registry) Enabled() []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.IsEnabled() {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the descriptor with the given name or ErrNotFound.
func (r *Registry) Get(name string) (*Descriptor, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return &r.descriptors[i], nil
}

// ByKind returns the descriptors of the given source kind,
// case-insensitively.
func (r *Registry) ByKind(kind string) []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if strings.EqualFold(d.Kind, kind) {
			out = append(out, d)
		}
	}
	return out
}

// expandEnv resolves ${VAR} placeholders depth-first over nested
// connection maps. A value is substituted only when it is exactly one
// placeholder; an unset variable leaves the literal in place so the
// failure surfaces at connect time with the original text intact.
func expandEnv(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			out[key] = expandEnvString(v)
		case map[string]any:
			out[key] = expandEnv(v)
		default:
			out[key] = v
		}
	}
	return out
}

func expandEnvString(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	name := s[2 : len(s)-1]
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return s
}
