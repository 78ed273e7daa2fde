// Package knowledge turns data source structure into searchable
// knowledge bases.
//
// Each enabled data source gets a Base: a snapshot of its tables and
// optionally a few sample rows, rendered into text documents,
// embedded, and stored in a named chromem-go collection. Bases move
// through a small lifecycle (uninitialized, initializing, ready,
// failed) and only serve searches while ready.
//
// The Registry owns all bases and offers bulk initialize, bulk load
// from the persisted store, and fan-out search across everything
// that is ready. Bulk operations never let one failing base take the
// rest down; per-base outcomes come back in a BatchResult.
//
// Document IDs are deterministic ("<source>:schema:<table>",
// "<source>:sample:<table>"), so rebuilding a base replaces its
// documents instead of accumulating duplicates.
package knowledge
