// Package sqliteexternal provides optional external SQLite drivers.
//
// It backs the document catalog with a CGO build of SQLite for large catalogs.
//
// # CGO SQLite Driver
//
// To use the CGO driver (github.com/mattn/go-sqlite3):
//
//	import _ "github.com/FocuswithJustin/Scribe/contrib/sqlite-external"
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// # Default Pure Go Driver
//
// By default the catalog uses modernc.org/sqlite, which requires no CGO.
// See github.com/FocuswithJustin/Scribe/core/sqlite for details.
//
// # When to Use
//
// Use this package when:
//   - Catalog indexing speed matters more than a static binary
//   - You need specific SQLite extensions
//   - You already have CGO in your build pipeline
//
// Use the default pure Go driver when:
//   - Portability is important
//   - Cross-compilation is required
//   - You want simpler deployment (single binary)
package sqliteexternal
