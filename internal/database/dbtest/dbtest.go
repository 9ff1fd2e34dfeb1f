// Package dbtest provides a scriptable in-memory stand-in for database.DB and
// pgx.Tx so services can be tested without a running Postgres.
package dbtest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement issued against the fake.
type Call struct {
	SQL  string
	Args []any
	InTx bool
}

// Handler answers a statement. Values are assigned to Scan destinations in order.
type Handler func(sql string, args []any) Result

// Result is what a Handler returns for a statement.
type Result struct {
	Rows [][]any
	Tag  string
	Err  error
}

// Single is a Result with one row.
func Single(values ...any) Result {
	return Result{Rows: [][]any{values}}
}

// Affected is an Exec Result reporting n rows.
func Affected(n int) Result {
	return Result{Tag: fmt.Sprintf("UPDATE %d", n)}
}

// Fail is a Result carrying err.
func Fail(err error) Result {
	return Result{Err: err}
}

// Fake implements database.DB.
type Fake struct {
	mu        sync.Mutex
	calls     []Call
	routes    []route
	Fallback  Handler
	BeginErr  error
	Commits   int
	Rollbacks int
}

type route struct {
	contains string
	handler  Handler
}

func New() *Fake {
	return &Fake{}
}

// On registers h for statements containing fragment. First match wins.
func (f *Fake) On(fragment string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route{contains: fragment, handler: h})
	return f
}

// Return registers a fixed result for statements containing fragment.
func (f *Fake) Return(fragment string, r Result) *Fake {
	return f.On(fragment, func(string, []any) Result { return r })
}

// Calls returns a copy of the recorded statements.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether any statement containing fragment was issued.
func (f *Fake) Called(fragment string) bool {
	for _, c := range f.Calls() {
		if strings.Contains(c.SQL, fragment) {
			return true
		}
	}
	return false
}

func (f *Fake) dispatch(sqlText string, args []any, inTx bool) Result {
	f.mu.Lock()
	f.calls = append(f.calls, Call{SQL: sqlText, Args: args, InTx: inTx})
	routes := f.routes
	fallback := f.Fallback
	f.mu.Unlock()

	for _, r := range routes {
		if strings.Contains(sqlText, r.contains) {
			return r.handler(sqlText, args)
		}
	}
	if fallback != nil {
		return fallback(sqlText, args)
	}
	return Result{Err: fmt.Errorf("dbtest: unexpected statement: %s", compact(sqlText))}
}

func (f *Fake) Exec(_ context.Context, sqlText string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(sqlText, args, false)
}

func (f *Fake) Query(_ context.Context, sqlText string, args ...any) (pgx.Rows, error) {
	return f.query(sqlText, args, false)
}

func (f *Fake) QueryRow(_ context.Context, sqlText string, args ...any) pgx.Row {
	return f.queryRow(sqlText, args, false)
}

func (f *Fake) Begin(context.Context) (pgx.Tx, error) {
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	return &Tx{fake: f}, nil
}

func (f *Fake) exec(sqlText string, args []any, inTx bool) (pgconn.CommandTag, error) {
	res := f.dispatch(sqlText, args, inTx)
	if res.Err != nil {
		return pgconn.CommandTag{}, res.Err
	}
	tag := res.Tag
	if tag == "" {
		tag = "OK 1"
	}
	return pgconn.NewCommandTag(tag), nil
}

func (f *Fake) query(sqlText string, args []any, inTx bool) (pgx.Rows, error) {
	res := f.dispatch(sqlText, args, inTx)
	if res.Err != nil {
		return nil, res.Err
	}
	return &Rows{rows: res.Rows, idx: -1}, nil
}

func (f *Fake) queryRow(sqlText string, args []any, inTx bool) pgx.Row {
	res := f.dispatch(sqlText, args, inTx)
	if res.Err != nil {
		return Row{err: res.Err}
	}
	if len(res.Rows) == 0 {
		return Row{err: pgx.ErrNoRows}
	}
	return Row{values: res.Rows[0]}
}

// Tx implements pgx.Tx on top of a Fake. Unused pgx.Tx methods panic.
type Tx struct {
	pgx.Tx
	fake *Fake
	done bool
}

func (t *Tx) Exec(_ context.Context, sqlText string, args ...any) (pgconn.CommandTag, error) {
	return t.fake.exec(sqlText, args, true)
}

func (t *Tx) Query(_ context.Context, sqlText string, args ...any) (pgx.Rows, error) {
	return t.fake.query(sqlText, args, true)
}

func (t *Tx) QueryRow(_ context.Context, sqlText string, args ...any) pgx.Row {
	return t.fake.queryRow(sqlText, args, true)
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{fake: t.fake}, nil
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.fake.mu.Lock()
	t.fake.Commits++
	t.fake.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.fake.mu.Lock()
	t.fake.Rollbacks++
	t.fake.mu.Unlock()
	return nil
}

// Row implements pgx.Row.
type Row struct {
	values []any
	err    error
}

func (r Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// Rows implements pgx.Rows over a fixed result set.
type Rows struct {
	rows   [][]any
	idx    int
	closed bool
	err    error
}

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return r.err }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	if r.idx >= len(r.rows) {
		r.closed = true
		return false
	}
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("dbtest: scan outside result set")
	}
	return assign(r.rows[r.idx], dest)
}

func (r *Rows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return nil, errors.New("dbtest: values outside result set")
	}
	return r.rows[r.idx], nil
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("dbtest: %d values for %d destinations", len(values), len(dest))
	}
	for i, d := range dest {
		if err := assignOne(values[i], d); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

func assignOne(value, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.New("destination is not a non-nil pointer")
	}
	target := dv.Elem()

	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target.Type()) {
		target.Set(v)
		return nil
	}
	if s, ok := dest.(sql.Scanner); ok {
		return s.Scan(value)
	}

	switch {
	case target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v)
		target.Set(p)
	case v.Type().ConvertibleTo(target.Type()) && v.Kind() != reflect.String:
		target.Set(v.Convert(target.Type()))
	case v.Kind() == reflect.String && target.Kind() == reflect.String:
		target.SetString(v.String())
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
