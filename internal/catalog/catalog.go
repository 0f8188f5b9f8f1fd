// Package catalog indexes parsed documents in SQLite: one row per
// document with its loss class, plus its heading outline for search.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/core/sqlite"
)

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id         INTEGER PRIMARY KEY,
		path       TEXT NOT NULL UNIQUE,
		format     TEXT NOT NULL,
		hash       TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL DEFAULT '',
		loss_class TEXT NOT NULL,
		warnings   INTEGER NOT NULL DEFAULT 0,
		indexed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS headings (
		doc_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		level  INTEGER NOT NULL,
		text   TEXT NOT NULL,
		ord    INTEGER NOT NULL,
		PRIMARY KEY (doc_id, ord)
	)`,
	`CREATE INDEX IF NOT EXISTS headings_text ON headings(text)`,
}

// Entry is one indexed document.
type Entry struct {
	ID        int64        `json:"id"`
	Path      string       `json:"path"`
	Format    string       `json:"format"`
	Hash      string       `json:"hash"`
	Title     string       `json:"title"`
	LossClass ir.LossClass `json:"loss_class"`
	Warnings  int          `json:"warnings"`
}

// Heading is one outline entry.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Catalog is an open catalog database.
type Catalog struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	db, err := sqlite.OpenFile(path)
	if err != nil {
		return nil, errors.NewIO("open catalog", path, err)
	}
	c := &Catalog{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	var version int
	if err := c.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading catalog version: %w", err)
	}
	if version > schemaVersion {
		return errors.NewValidation("catalog", fmt.Sprintf("schema version %d is newer than supported %d", version, schemaVersion))
	}
	for _, stmt := range schema {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating catalog schema: %w", err)
		}
	}
	_, err := c.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion))
	return err
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index records a parse result under path. Documents are keyed by the
// BLAKE3 hash of their source: re-indexing the same content under a new
// path moves the entry, and new content at a known path replaces it.
func (c *Catalog) Index(ctx context.Context, path string, res *ir.ConversionResult[*ir.Document]) (*Entry, error) {
	doc := res.Value
	e := &Entry{Path: path, Title: doc.Title(), Warnings: len(res.Warnings)}
	if doc.Source != nil {
		e.Format, e.Hash = doc.Source.Format, doc.Source.Hash
	}
	if e.Hash == "" {
		h, err := ir.HashDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("hashing document: %w", err)
		}
		e.Hash = h
	}
	if e.Title == "" {
		if hs := doc.Content.Find(ir.KindHeading); len(hs) > 0 {
			e.Title = hs[0].PlainText()
		}
	}
	e.LossClass = res.LossReport(e.Format).LossClass

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM headings WHERE doc_id IN (SELECT id FROM documents WHERE path = ? AND hash <> ?)`,
		`DELETE FROM documents WHERE path = ? AND hash <> ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, path, e.Hash); err != nil {
			return nil, fmt.Errorf("replacing %s: %w", path, err)
		}
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (path, format, hash, title, loss_class, warnings, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			path = excluded.path, format = excluded.format, title = excluded.title,
			loss_class = excluded.loss_class, warnings = excluded.warnings,
			indexed_at = excluded.indexed_at
		RETURNING id`,
		e.Path, e.Format, e.Hash, e.Title, string(e.LossClass), e.Warnings,
		c.now().UTC().Format(time.RFC3339),
	).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM headings WHERE doc_id = ?`, e.ID); err != nil {
		return nil, err
	}
	for i, h := range outline(doc.Content) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO headings (doc_id, level, text, ord) VALUES (?, ?, ?, ?)`,
			e.ID, h.Level, h.Text, i); err != nil {
			return nil, fmt.Errorf("indexing headings of %s: %w", path, err)
		}
	}
	return e, tx.Commit()
}

func outline(root *ir.Node) []Heading {
	var out []Heading
	for _, h := range root.Find(ir.KindHeading) {
		out = append(out, Heading{Level: h.Level(), Text: strings.TrimSpace(h.PlainText())})
	}
	return out
}

const entryColumns = `id, path, format, hash, title, loss_class, warnings`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var loss string
		if err := rows.Scan(&e.ID, &e.Path, &e.Format, &e.Hash, &e.Title, &loss, &e.Warnings); err != nil {
			return nil, err
		}
		e.LossClass = ir.LossClass(loss)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry for path.
func (c *Catalog) Get(ctx context.Context, path string) (*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM documents WHERE path = ?`, path)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NewNotFound("document", path)
	}
	return &entries[0], nil
}

// List returns every entry ordered by path.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Search finds documents whose title or any heading contains term,
// case-insensitively for ASCII.
func (c *Catalog) Search(ctx context.Context, term string) ([]Entry, error) {
	pattern := "%" + escapeLike(term) + "%"
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM documents d
		WHERE d.title LIKE ? ESCAPE '\'
		   OR EXISTS (SELECT 1 FROM headings h WHERE h.doc_id = d.id AND h.text LIKE ? ESCAPE '\')
		ORDER BY d.path`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Outline returns the headings of the document at path in order.
func (c *Catalog) Outline(ctx context.Context, path string) ([]Heading, error) {
	e, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT level, text FROM headings WHERE doc_id = ? ORDER BY ord`, e.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Heading
	for rows.Next() {
		var h Heading
		if err := rows.Scan(&h.Level, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
