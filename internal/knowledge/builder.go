package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tanuki0/tanuki/internal/schema"
)

// IncludeTable decides whether a table participates in indexing.
// A non-empty include list is authoritative: only listed tables pass,
// and the exclude list is ignored. With no include list, every table
// passes except those excluded.
func IncludeTable(name string, include, exclude []string) bool {
	if len(include) > 0 {
		for _, t := range include {
			if t == name {
				return true
			}
		}
		return false
	}
	for _, t := range exclude {
		if t == name {
			return false
		}
	}
	return true
}

// BuildSchemaDocuments renders one document per table of the
// snapshot, subject to the include/exclude filter. Document IDs are
// deterministic so rebuilding a base replaces rather than duplicates.
func BuildSchemaDocuments(datasource string, snap *schema.Snapshot, include, exclude []string) []Document {
	now := time.Now()
	docs := make([]Document, 0, len(snap.Tables))
	for _, table := range snap.Tables {
		if !IncludeTable(table.Name, include, exclude) {
			continue
		}
		docs = append(docs, Document{
			ID:      fmt.Sprintf("%s:schema:%s", datasource, table.Name),
			Content: renderTable(&table),
			Metadata: map[string]string{
				MetaSource:     SourceSchema,
				MetaTable:      table.Name,
				MetaDatasource: datasource,
			},
			CreateAt: now,
		})
	}
	return docs
}

// renderTable produces the searchable text for one table: a header
// line, then one line per column in declaration order.
func renderTable(table *schema.Table) string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(table.Name)
	if table.Comment != "" {
		b.WriteString(" - ")
		b.WriteString(table.Comment)
	}
	b.WriteString("\nColumns:\n")
	for _, col := range table.Columns {
		b.WriteString("- ")
		b.WriteString(col.Name)
		b.WriteString(" (")
		b.WriteString(col.Type)
		b.WriteString(")")
		switch col.Key {
		case schema.KeyPrimary:
			b.WriteString(" [primary key]")
		case schema.KeyUnique:
			b.WriteString(" [unique]")
		case schema.KeyIndex:
			b.WriteString(" [indexed]")
		}
		if !col.Nullable {
			b.WriteString(" [not null]")
		}
		if col.Comment != "" {
			b.WriteString(": ")
			b.WriteString(col.Comment)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildSampleDocument renders the sampled rows of one table into a
// single document. Returns false when rows is empty, in which case no
// document should be indexed.
func BuildSampleDocument(datasource, table string, rows []schema.Row) (Document, bool) {
	if len(rows) == 0 {
		return Document{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sample data from table %s:\n", table)
	for i, row := range rows {
		fmt.Fprintf(&b, "Row %d: ", i+1)
		b.WriteString(renderRow(row))
		b.WriteString("\n")
	}

	return Document{
		ID:      fmt.Sprintf("%s:sample:%s", datasource, table),
		Content: b.String(),
		Metadata: map[string]string{
			MetaSource:     SourceSampleData,
			MetaTable:      table,
			MetaDatasource: datasource,
		},
		CreateAt: time.Now(),
	}, true
}

// renderRow formats one row as "k=v, k=v" with keys sorted for
// deterministic output.
func renderRow(row schema.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(row[k])))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
