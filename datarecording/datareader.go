package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Filter narrows the rows read from a table.
type Filter struct {
	// Where is a SQL condition without the WHERE keyword, for example
	// "Signal = ? AND Fault != ''".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows; 0 reads them all. Offset is ignored
	// without a limit.
	Limit  int
	Offset int
}

func (f Filter) where() string {
	if f.Where == "" {
		return ""
	}

	return " WHERE " + f.Where
}

func (f Filter) window() string {
	var b strings.Builder

	if f.OrderBy != "" {
		b.WriteString(" ORDER BY " + f.OrderBy)
	}

	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	return b.String()
}

// A Reader decodes the rows of a recorded database back into entries. A
// table has to be registered with a sample entry before it can be read.
type Reader struct {
	db   *sql.DB
	rows map[string]reflect.Type
}

// Open opens an existing database file read-only.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "opening record")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(err, "opening record")
	}

	return NewReader(db), nil
}

// NewReader creates a Reader over an open database.
func NewReader(db *sql.DB) *Reader {
	return &Reader{
		db:   db,
		rows: make(map[string]reflect.Type),
	}
}

// Register declares the entry type stored in table.
func (r *Reader) Register(table string, sample any) {
	r.rows[table] = reflect.TypeOf(sample)
}

// Tables returns the names of the tables in the database, sorted.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "listing tables")
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *Reader) entryType(table string) (reflect.Type, error) {
	t, ok := r.rows[table]
	if !ok {
		return nil, errors.Errorf("table %s is not registered", table)
	}

	return t, nil
}

// Count returns the number of rows of a registered table that pass the
// filter. The window of the filter is ignored.
func (r *Reader) Count(ctx context.Context, table string, f Filter) (int, error) {
	if _, err := r.entryType(table); err != nil {
		return 0, err
	}

	var n int

	q := "SELECT COUNT(*) FROM " + table + f.where()
	if err := r.db.QueryRowContext(ctx, q, f.Args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}

	return n, nil
}

// Select reads the rows of a registered table that pass the filter. Each
// result is a pointer to a new entry of the registered type. Columns the
// entry has no field for are skipped.
func (r *Reader) Select(ctx context.Context, table string, f Filter) ([]any, error) {
	t, err := r.entryType(table)
	if err != nil {
		return nil, err
	}

	q := "SELECT * FROM " + table + f.where() + f.window()

	rows, err := r.db.QueryContext(ctx, q, f.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "selecting from %s", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrapf(err, "selecting from %s", table)
	}

	var entries []any

	for rows.Next() {
		entry := reflect.New(t)
		if err := rows.Scan(scanTargets(entry.Elem(), columns)...); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", table)
		}

		entries = append(entries, entry.Interface())
	}

	return entries, rows.Err()
}

func scanTargets(entry reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))

	for i, c := range columns {
		field := entry.FieldByName(c)
		if !field.IsValid() || !field.CanSet() {
			targets[i] = new(any)
			continue
		}

		targets[i] = field.Addr().Interface()
	}

	return targets
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
