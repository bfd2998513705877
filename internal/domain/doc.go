// Package domain defines the core types of the invite notification worker.
//
// Types in this package are pure value objects with no behavior beyond
// validation, no database dependencies, and no transport concerns. They are
// the shared language between the event handler, the record store, and the
// mail providers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
package domain
