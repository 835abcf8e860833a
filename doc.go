// Package rowpager provides result-set pagination primitives for GORM.
//
// # Overview
//
// rowpager pages through the rows of an arbitrary base query. The base query
// is wrapped as a derived table, so any SELECT works as long as it exposes
// the configured id and ordering columns. Four strategies are available:
//   - CursorPaginator: seek pagination positioned by an opaque token holding
//     the id, timestamp and sort value of a boundary row. Supports forward
//     and backward traversal and optional HMAC signed tokens.
//   - KeysetPaginator: seek pagination over an ordered list of key columns,
//     addressed either by a keyset token or by an after_id/before_id anchor.
//   - OffsetPaginator: LIMIT/OFFSET for legacy clients.
//   - StreamingPaginator: iterates over the whole result set in bounded
//     chunks, through a server-side cursor on PostgreSQL and ranged queries
//     elsewhere. WriteJSON and WriteCSV turn a stream into an export.
//
// Facade picks a strategy from request Params and returns a Response with
// PaginationMetadata (page info, navigation URLs, timing).
//
// Key concepts
//   - Query: base SQL with bind arguments, without LIMIT. Paginators order
//     the derived table themselves. Streaming keeps the order of the query,
//     which needs an ORDER BY over a unique key outside PostgreSQL.
//   - Row: a scanned result row keyed by column name.
//   - Orderings: multi-column ordering with explicit sort orders. The id
//     column always closes the ordering so pages are deterministic. Custom
//     sort columns may hold NULL; those rows come last in either sort order.
//   - Config: limits, columns and stream settings, loadable with LoadConfig.
//
// Malformed cursors never fail a request: they are logged and the first page
// is returned.
package rowpager
