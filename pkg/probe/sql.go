package probe

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// drivers selectable by name in the database config
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
)

// SQLResult is the outcome of a metadata query check
type SQLResult struct {
	Matched  bool
	Actual   string
	Expected string
	Query    string
}

// SQLProbe runs read-only queries against the backend metadata store
type SQLProbe struct {
	db *sql.DB
}

// OpenSQLProbe connects with driverName ("mysql" or "pgx") to dsn
func OpenSQLProbe(ctx context.Context, driverName, dsn string, maxOpen int) (*SQLProbe, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &errors.ErrSetup{Resource: "database connection", Cause: err.Error()}
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &errors.ErrSetup{Resource: "database connection", Cause: err.Error()}
	}
	return &SQLProbe{db: db}, nil
}

// NewSQLProbe wraps an open database
func NewSQLProbe(db *sql.DB) *SQLProbe {
	return &SQLProbe{db: db}
}

// Close releases the connection pool
func (p *SQLProbe) Close() error {
	return p.db.Close()
}

func readOnly(query string) error {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "EXPLAIN"} {
		if strings.HasPrefix(q, prefix) {
			return nil
		}
	}
	return fmt.Errorf("refusing to run a statement that is not a query: %q", query)
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}

// Scalar runs query in a read-only transaction and returns the first column
// of its first row
func (p *SQLProbe) Scalar(ctx context.Context, query string, args ...interface{}) (string, error) {
	if err := readOnly(query); err != nil {
		return "", err
	}
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var v interface{}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", &errors.ErrNotFound{ID: query, Type: "Row"}
		}
		return "", fmt.Errorf("query %q failed: %v", query, err)
	}
	out := formatValue(v)
	log.Debugf("Query %q returned [%s]", query, out)
	return out, nil
}

// ExpectScalar runs query and compares its value with expected
func (p *SQLProbe) ExpectScalar(ctx context.Context, query, expected string, args ...interface{}) (*SQLResult, error) {
	actual, err := p.Scalar(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res := &SQLResult{Matched: actual == expected, Actual: actual, Expected: expected, Query: query}
	if !res.Matched {
		log.Warnf("Query %q returned [%s], expected [%s]", query, actual, expected)
	}
	return res, nil
}

// CompareScalars runs both queries and reports whether they agree. The
// first query's value is the actual one.
func (p *SQLProbe) CompareScalars(ctx context.Context, actualQuery, expectedQuery string, args ...interface{}) (*SQLResult, error) {
	actual, err := p.Scalar(ctx, actualQuery, args...)
	if err != nil {
		return nil, err
	}
	expected, err := p.Scalar(ctx, expectedQuery, args...)
	if err != nil {
		return nil, err
	}
	res := &SQLResult{Matched: actual == expected, Actual: actual, Expected: expected, Query: actualQuery}
	if !res.Matched {
		log.Warnf("Queries disagree: [%s] from %q, [%s] from %q", actual, actualQuery, expected, expectedQuery)
	}
	return res, nil
}
