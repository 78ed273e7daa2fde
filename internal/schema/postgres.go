package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// postgresSource reads table structure from information_schema in the
// public schema.
//
// Connection parameters: host (default localhost), port (default
// 5432), user, password, database, sslmode (default disable).
type postgresSource struct {
	params map[string]any
	conn   *pgx.Conn
}

func newPostgresSource(params map[string]any) *postgresSource {
	return &postgresSource{params: params}
}

func (s *postgresSource) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		stringParam(s.params, "host", "localhost"),
		intParam(s.params, "port", 5432),
		stringParam(s.params, "user", ""),
		stringParam(s.params, "password", ""),
		stringParam(s.params, "database", ""),
		stringParam(s.params, "sslmode", "disable"))

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.conn = conn
	return nil
}

func (s *postgresSource) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(ctx); err != nil {
		return fmt.Errorf("closing postgres connection: %w", err)
	}
	s.conn = nil
	return nil
}

func (s *postgresSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	const tablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := s.conn.Query(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %w", ErrSchema, err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning table row: %w", ErrSchema, err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	var snapshot Snapshot
	for _, name := range names {
		columns, err := s.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshot.Tables = append(snapshot.Tables, Table{Name: name, Columns: columns})
	}

	return &snapshot, nil
}

func (s *postgresSource) tableColumns(ctx context.Context, table string) ([]Column, error) {
	primaries, err := s.primaryKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	const columnsQuery = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`

	rows, err := s.conn.Query(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("%w: describing %q: %w", ErrSchema, table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, fmt.Errorf("%w: scanning column of %q: %w", ErrSchema, table, err)
		}
		col.Nullable = nullable == "YES"
		if primaries[col.Name] {
			col.Key = KeyPrimary
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	return columns, nil
}

func (s *postgresSource) primaryKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	const pkQuery = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = 'public'
		  AND tc.table_name = $1`

	rows, err := s.conn.Query(ctx, pkQuery, table)
	if err != nil {
		return nil, fmt.Errorf("%w: primary keys of %q: %w", ErrSchema, table, err)
	}
	defer rows.Close()

	primaries := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}
		primaries[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	return primaries, nil
}

func (s *postgresSource) SampleRows(ctx context.Context, table string, limit int) ([]Row, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrSchema, table)
	}

	query := fmt.Sprintf(`SELECT * FROM "%s" LIMIT $1`, table)
	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("sampling %q: %w", table, err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}

	return out, nil
}
