package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// mysqlSource reads table structure from information_schema.
//
// Connection parameters: host (default localhost), port (default
// 3306), user, password, database.
type mysqlSource struct {
	params   map[string]any
	database string
	db       *sql.DB
}

func newMySQLSource(params map[string]any) *mysqlSource {
	return &mysqlSource{
		params:   params,
		database: stringParam(params, "database", ""),
	}
}

func (s *mysqlSource) Connect(ctx context.Context) error {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d",
		stringParam(s.params, "host", "localhost"),
		intParam(s.params, "port", 3306))
	cfg.User = stringParam(s.params, "user", "")
	cfg.Passwd = stringParam(s.params, "password", "")
	cfg.DBName = s.database
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.db = db
	return nil
}

func (s *mysqlSource) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing mysql connection: %w", err)
	}
	s.db = nil
	return nil
}

func (s *mysqlSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	const tablesQuery = `
		SELECT TABLE_NAME, TABLE_COMMENT
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`

	rows, err := s.db.QueryContext(ctx, tablesQuery, s.database)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %w", ErrSchema, err)
	}
	defer rows.Close()

	var snapshot Snapshot
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("%w: scanning table row: %w", ErrSchema, err)
		}
		snapshot.Tables = append(snapshot.Tables, Table{Name: name, Comment: comment})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	for i := range snapshot.Tables {
		columns, err := s.tableColumns(ctx, snapshot.Tables[i].Name)
		if err != nil {
			return nil, err
		}
		snapshot.Tables[i].Columns = columns
	}

	return &snapshot, nil
}

func (s *mysqlSource) tableColumns(ctx context.Context, table string) ([]Column, error) {
	const columnsQuery = `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_COMMENT, IS_NULLABLE, COLUMN_KEY
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := s.db.QueryContext(ctx, columnsQuery, s.database, table)
	if err != nil {
		return nil, fmt.Errorf("%w: describing %q: %w", ErrSchema, table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable, key string
		if err := rows.Scan(&col.Name, &col.Type, &col.Comment, &nullable, &key); err != nil {
			return nil, fmt.Errorf("%w: scanning column of %q: %w", ErrSchema, table, err)
		}
		col.Nullable = nullable == "YES"
		col.Key = normalizeMySQLKey(key)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	return columns, nil
}

// normalizeMySQLKey maps information_schema COLUMN_KEY markers to the
// package's key role constants.
func normalizeMySQLKey(key string) string {
	switch key {
	case "PRI":
		return KeyPrimary
	case "UNI":
		return KeyUnique
	case "MUL":
		return KeyIndex
	default:
		return ""
	}
}

func (s *mysqlSource) SampleRows(ctx context.Context, table string, limit int) ([]Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrSchema, table)
	}

	query := fmt.Sprintf("SELECT * FROM `%s` LIMIT ?", table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sampling %q: %w", table, err)
		}

		row := make(Row, len(columns))
		for i, name := range columns {
			// The driver returns []byte for text columns.
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sampling %q: %w", table, err)
	}

	return out, nil
}
