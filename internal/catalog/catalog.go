// Package catalog is a small sqlite-backed product catalog served over
// httprpc. Listing methods return their *sql.Rows directly, so results
// stream to the client one row at a time and the rows are closed when the
// response ends.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// EditorRole is the principal role allowed to change the catalog when
// editing is restricted.
const EditorRole = "editor"

var (
	ErrNotFound     = errors.New("catalog: item not found")
	ErrForbidden    = errors.New("catalog: editor role required")
	ErrInsufficient = errors.New("catalog: insufficient stock")
)

// Catalog owns the database handle.
type Catalog struct {
	db *sql.DB
	// restricted limits AddItem and Restock to principals with EditorRole.
	restricted bool
	now        func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithEditors restricts changes to principals holding EditorRole.
func WithEditors() Option {
	return func(c *Catalog) { c.restricted = true }
}

// WithClock overrides the clock used to stamp new items.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// Open opens the sqlite database at dsn and applies the schema.
func Open(dsn string, opts ...Option) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: a streaming listing holds it until its rows close,
	// and later calls wait their turn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	c := &Catalog{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// DB returns the underlying handle.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Seed fills an empty catalog with demonstration data.
func (c *Catalog) Seed(ctx context.Context) error {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM item").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	seed := []newItem{
		{name: "hammer", category: "tools", price: 12.5, stock: 10, tags: []string{"hand", "steel"}},
		{name: "wrench", category: "tools", price: 8.25, stock: 0, tags: []string{"steel"}},
		{name: "The Go Programming Language", category: "books", price: 39.99, stock: 3, tags: []string{"paper"}},
	}
	for _, it := range seed {
		if _, err := c.insert(ctx, it); err != nil {
			return fmt.Errorf("seed %s: %w", it.name, err)
		}
	}
	return nil
}

type newItem struct {
	name     string
	category string
	price    float64
	stock    int64
	tags     []string
}

func (c *Catalog) insert(ctx context.Context, it newItem) (id int64, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO category (name) VALUES (?)", it.category); err != nil {
		return 0, err
	}
	var categoryID int64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM category WHERE name = ?", it.category).Scan(&categoryID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO item (name, price, stock, category_id, added_at) VALUES (?, ?, ?, ?, ?)",
		it.name, it.price, it.stock, categoryID, c.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, err
	}
	for _, tag := range it.tags {
		if _, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO item_tag (item_id, tag) VALUES (?, ?)", id, tag); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}
