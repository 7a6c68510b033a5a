package probe

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/portworx/jobharness/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB answers queries from a fixed table of single values
type fakeDB struct {
	mu       sync.Mutex
	values   map[string]driver.Value
	readOnly []bool
}

func (f *fakeDB) Open(name string) (driver.Conn, error) {
	return &fakeConn{db: f}, nil
}

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *fakeConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.db.mu.Lock()
	c.db.readOnly = append(c.db.readOnly, opts.ReadOnly)
	c.db.mu.Unlock()
	return fakeTx{}, nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("exec not supported")
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.values[s.query]
	if !ok {
		return nil, fmt.Errorf("table does not exist")
	}
	if v == "empty" {
		return &fakeRows{}, nil
	}
	return &fakeRows{values: []driver.Value{v}}, nil
}

type fakeRows struct {
	values []driver.Value
	next   int
}

func (r *fakeRows) Columns() []string { return []string{"value"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.next]
	r.next++
	return nil
}

var fake = &fakeDB{values: map[string]driver.Value{
	"SELECT COUNT(*) FROM primary_copy":   int64(42),
	"SELECT COUNT(*) FROM secondary_copy": int64(42),
	"SELECT COUNT(*) FROM stale_copy":     int64(40),
	"select status from jobs":             []byte("Completed"),
	"SELECT end_time FROM jobs":           nil,
	"SELECT ratio FROM jobs":              1.5,
	"SELECT id FROM jobs":                 "empty",
}}

func init() {
	sql.Register("probefake", fake)
}

func newSQLProbe(t *testing.T) *SQLProbe {
	db, err := sql.Open("probefake", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLProbe(db)
}

func TestScalar(t *testing.T) {
	p := newSQLProbe(t)
	ctx := context.TODO()

	v, err := p.Scalar(ctx, "SELECT COUNT(*) FROM primary_copy")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = p.Scalar(ctx, "select status from jobs")
	require.NoError(t, err)
	assert.Equal(t, "Completed", v)

	v, err = p.Scalar(ctx, "SELECT end_time FROM jobs")
	require.NoError(t, err)
	assert.Equal(t, "NULL", v)

	v, err = p.Scalar(ctx, "SELECT ratio FROM jobs")
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)

	_, err = p.Scalar(ctx, "SELECT id FROM jobs")
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)

	_, err = p.Scalar(ctx, "SELECT * FROM missing")
	require.Error(t, err)

	fake.mu.Lock()
	for _, ro := range fake.readOnly {
		assert.True(t, ro)
	}
	fake.mu.Unlock()
}

func TestScalarRejectsWrites(t *testing.T) {
	p := newSQLProbe(t)
	for _, q := range []string{"DELETE FROM jobs", "update jobs set status = 'x'", "  DROP TABLE jobs"} {
		_, err := p.Scalar(context.TODO(), q)
		require.Error(t, err, q)
	}
}

func TestExpectScalar(t *testing.T) {
	p := newSQLProbe(t)
	res, err := p.ExpectScalar(context.TODO(), "select status from jobs", "Completed")
	require.NoError(t, err)
	assert.True(t, res.Matched)

	// a mismatch is a result, not an error
	res, err = p.ExpectScalar(context.TODO(), "select status from jobs", "Failed")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, "Completed", res.Actual)
	assert.Equal(t, "Failed", res.Expected)
	assert.Equal(t, "select status from jobs", res.Query)
}

func TestCompareScalars(t *testing.T) {
	p := newSQLProbe(t)
	res, err := p.CompareScalars(context.TODO(), "SELECT COUNT(*) FROM secondary_copy", "SELECT COUNT(*) FROM primary_copy")
	require.NoError(t, err)
	assert.True(t, res.Matched)

	res, err = p.CompareScalars(context.TODO(), "SELECT COUNT(*) FROM stale_copy", "SELECT COUNT(*) FROM primary_copy")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, "40", res.Actual)
	assert.Equal(t, "42", res.Expected)

	_, err = p.CompareScalars(context.TODO(), "SELECT COUNT(*) FROM primary_copy", "SELECT * FROM missing")
	require.Error(t, err)
}

func TestOpenSQLProbeUnknownDriver(t *testing.T) {
	_, err := OpenSQLProbe(context.TODO(), "oracle", "dsn", 1)
	require.Error(t, err)
	assert.Equal(t, errors.CategorySetup, errors.Category(err))
}
