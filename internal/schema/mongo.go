package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSource treats each collection as a table. Field names and
// types are inferred from one sampled document per collection, which
// is as much structure as a schemaless store exposes.
//
// Connection parameters: uri (default mongodb://localhost:27017),
// database.
type mongoSource struct {
	params   map[string]any
	database string
	client   *mongo.Client
	db       *mongo.Database
}

func newMongoSource(params map[string]any) *mongoSource {
	return &mongoSource{
		params:   params,
		database: stringParam(params, "database", ""),
	}
}

func (s *mongoSource) Connect(ctx context.Context) error {
	uri := stringParam(s.params, "uri", "mongodb://localhost:27017")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.client = client
	s.db = client.Database(s.database)
	return nil
}

func (s *mongoSource) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("closing mongodb connection: %w", err)
	}
	s.client = nil
	s.db = nil
	return nil
}

func (s *mongoSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing collections: %w", ErrSchema, err)
	}
	sort.Strings(names)

	var snapshot Snapshot
	for _, name := range names {
		columns, err := s.collectionFields(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshot.Tables = append(snapshot.Tables, Table{Name: name, Columns: columns})
	}

	return &snapshot, nil
}

// collectionFields infers field names and BSON types from the first
// document of the collection. An empty collection yields no columns.
func (s *mongoSource) collectionFields(ctx context.Context, name string) ([]Column, error) {
	var doc bson.D
	err := s.db.Collection(name).FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sampling collection %q: %w", ErrSchema, name, err)
	}

	columns := make([]Column, 0, len(doc))
	for _, elem := range doc {
		col := Column{
			Name:     elem.Key,
			Type:     bsonTypeName(elem.Value),
			Nullable: true,
		}
		if elem.Key == "_id" {
			col.Key = KeyPrimary
			col.Nullable = false
		}
		columns = append(columns, col)
	}

	return columns, nil
}

// bsonTypeName maps a decoded BSON value to a stable type label.
func bsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case bool:
		return "bool"
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.A:
		return "array"
	case bson.D, bson.M:
		return "document"
	case primitive.Binary:
		return "binary"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (s *mongoSource) SampleRows(ctx context.Context, table string, limit int) ([]Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	cursor, err := s.db.Collection(table).Find(ctx, bson.D{},
		options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}
	defer cursor.Close(ctx)

	var out []Row
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("sampling %q: %w", table, err)
		}
		out = append(out, Row(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}

	return out, nil
}
