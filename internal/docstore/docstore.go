// Package docstore provides a generic in-memory document collection with
// filter queries, multi-field sorting, and field-keyed updates.
//
// Documents are schemaless JSON objects stored in an in-memory SQLite
// database (modernc.org/sqlite, pure Go). Filters support exact matching
// on any field and regular-expression matching on string fields via a
// registered REGEXP function. Query results are lazy and restartable:
// every consumption of the returned sequence re-runs the query against
// the current collection state.
package docstore

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sqlite "modernc.org/sqlite"

	"github.com/treefort-labs/dirstore/internal/errors"
)

// regexpCacheSize bounds the compiled-pattern cache shared by all
// collections in the process.
const regexpCacheSize = 256

var regexpCache *lru.Cache[string, *regexp.Regexp]

func init() {
	cache, err := lru.New[string, *regexp.Regexp](regexpCacheSize)
	if err != nil {
		panic(err)
	}
	regexpCache = cache

	// SQLite rewrites `x REGEXP y` as regexp(y, x): pattern first.
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
}

func regexpFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("regexp: pattern must be a string")
	}
	text, ok := args[1].(string)
	if !ok {
		// Regex only matches string fields.
		return int64(0), nil
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(text) {
		return int64(1), nil
	}
	return int64(0), nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexpCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexpCache.Add(pattern, re)
	return re, nil
}

// Filter constrains a query. Keys are document fields (dotted paths reach
// into nested objects); values are either literals (exact match) or an
// operator map such as {"$regex": "^calculation"}.
type Filter map[string]any

// SortField is one element of an ordered sort specification.
type SortField struct {
	Field      string
	Descending bool
}

// QueryOption tunes a query.
type QueryOption func(*queryOpts)

type queryOpts struct {
	sort  []SortField
	skip  int
	limit int
}

// WithSort orders results by the given fields; later fields break ties
// among earlier ones.
func WithSort(fields []SortField) QueryOption {
	return func(o *queryOpts) { o.sort = fields }
}

// WithSkip skips the first n results.
func WithSkip(n int) QueryOption {
	return func(o *queryOpts) { o.skip = n }
}

// WithLimit caps the number of results (0 = no limit).
func WithLimit(n int) QueryOption {
	return func(o *queryOpts) { o.limit = n }
}

// Collection is one document set keyed by a designated field.
type Collection struct {
	mu     sync.RWMutex
	db     *sql.DB
	key    string
	closed bool
}

// NewCollection creates an empty in-memory collection keyed by keyField.
func NewCollection(keyField string) (*Collection, error) {
	if keyField == "" {
		return nil, errors.New(errors.ErrCodeInternal, "collection key field must not be empty", nil)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	// A single connection keeps every statement on the same in-memory
	// database and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	schema := `
	CREATE TABLE IF NOT EXISTS docs (
		key TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	return &Collection{db: db, key: keyField}, nil
}

// KeyField returns the field documents are keyed by.
func (c *Collection) KeyField() string {
	return c.key
}

// Insert upserts the given documents. Each document must carry a
// non-empty string value for the collection's key field.
func (c *Collection) Insert(docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New(errors.ErrCodeInternal, "collection is closed", nil)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO docs (key, doc) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		key, ok := doc[c.key].(string)
		if !ok || key == "" {
			return errors.New(errors.ErrCodeInternal,
				fmt.Sprintf("document missing key field %q", c.key), nil)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
		if _, err := stmt.Exec(key, string(data)); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	return nil
}

// Get returns the document with the given key value, if present.
func (c *Collection) Get(key string) (map[string]any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var raw string
	err := c.db.QueryRow(`SELECT doc FROM docs WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err)
	}
	return doc, true, nil
}

// Update replaces stored documents keyed by the given field. When keyField
// is the collection key this is an upsert; otherwise existing documents
// whose keyField matches are replaced in place.
func (c *Collection) Update(docs []map[string]any, keyField string) error {
	if keyField == c.key || keyField == "" {
		return c.Insert(docs)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range docs {
		val, ok := doc[keyField]
		if !ok {
			return errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("document missing update key field %q", keyField), nil)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
		_, err = c.db.Exec(
			`UPDATE docs SET doc = ? WHERE json_extract(doc, ?) = ?`,
			string(data), jsonPath(keyField), val,
		)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
	}
	return nil
}

// Query returns a lazy, restartable sequence of matching documents. The
// filter is validated eagerly; iteration re-runs the underlying query
// against current state each time the sequence is consumed.
func (c *Collection) Query(filter Filter, opts ...QueryOption) (iter.Seq[map[string]any], error) {
	var o queryOpts
	for _, opt := range opts {
		opt(&o)
	}

	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT doc FROM docs` + where

	if len(o.sort) > 0 {
		clauses := make([]string, 0, len(o.sort))
		for _, sf := range o.sort {
			dir := "ASC"
			if sf.Descending {
				dir = "DESC"
			}
			clauses = append(clauses, fmt.Sprintf("json_extract(doc, ?) %s", dir))
			args = append(args, jsonPath(sf.Field))
		}
		query += " ORDER BY " + strings.Join(clauses, ", ")
	} else {
		query += " ORDER BY key"
	}

	if o.limit > 0 || o.skip > 0 {
		limit := o.limit
		if limit <= 0 {
			limit = -1 // SQLite: no limit
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, o.skip)
	}

	seq := func(yield func(map[string]any) bool) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.closed {
			return
		}

		rows, err := c.db.Query(query, args...)
		if err != nil {
			slog.Warn("document query failed",
				slog.String("error", err.Error()))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				slog.Warn("document scan failed", slog.String("error", err.Error()))
				return
			}
			var doc map[string]any
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				slog.Warn("document decode failed", slog.String("error", err.Error()))
				continue
			}
			if !yield(doc) {
				return
			}
		}
	}
	return seq, nil
}

// Count returns the number of documents matching the filter.
func (c *Collection) Count(filter Filter) (int, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM docs`+where, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err)
	}
	return n, nil
}

// Keys returns all key values in the collection, sorted.
func (c *Collection) Keys() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`SELECT key FROM docs ORDER BY key`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the collection.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// buildWhere translates a filter into a WHERE clause. Fields are sorted so
// generated SQL is deterministic for a given filter.
func buildWhere(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	var args []any

	for _, field := range fields {
		value := filter[field]
		switch v := value.(type) {
		case map[string]any:
			pattern, ok := v["$regex"]
			if !ok || len(v) != 1 {
				return "", nil, errors.New(errors.ErrCodeInvalidFilter,
					fmt.Sprintf("unsupported operator for field %q", field), nil)
			}
			p, ok := pattern.(string)
			if !ok {
				return "", nil, errors.New(errors.ErrCodeInvalidFilter,
					fmt.Sprintf("$regex for field %q must be a string", field), nil)
			}
			if _, err := compilePattern(p); err != nil {
				return "", nil, errors.Wrap(errors.ErrCodeInvalidFilter, err).
					WithDetail("field", field)
			}
			clauses = append(clauses, `json_extract(doc, ?) REGEXP ?`)
			args = append(args, jsonPath(field), p)
		case nil:
			return "", nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("nil constraint for field %q", field), nil)
		default:
			clauses = append(clauses, `json_extract(doc, ?) = ?`)
			args = append(args, jsonPath(field), v)
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// jsonPath builds a JSON path expression for a (possibly dotted) field.
func jsonPath(field string) string {
	parts := strings.Split(field, ".")
	var b strings.Builder
	b.WriteString("$")
	for _, part := range parts {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(part, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

