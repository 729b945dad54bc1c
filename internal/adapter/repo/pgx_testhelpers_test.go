package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storybook/internal/domain"
)

type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type TestRowsBase struct{}

func (TestRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (TestRowsBase) Conn() *pgx.Conn { return nil }

func (TestRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (TestRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (TestRowsBase) RawValues() [][]byte { return nil }

// fakeExecutor records every statement so tests can assert on queries
// and arguments without a live pool.
type fakeExecutor struct {
	execTag  pgconn.CommandTag
	execErr  error
	row      pgx.Row
	rows     pgx.Rows
	queryErr error

	queries []string
	args    [][]any
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.record(query, args)
	return f.execTag, f.execErr
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.record(query, args)
	if f.row == nil {
		return NewSimpleRow(nil)
	}
	return f.row
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.record(query, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeExecutor) record(query string, args []any) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
}

// jobRows streams a fixed slice of jobs through the pgx.Rows contract.
type jobRows struct {
	TestRowsBase
	jobs   []domain.Job
	idx    int
	errAt  int
	err    error
	closed bool
}

func (r *jobRows) Close() { r.closed = true }

func (r *jobRows) Err() error {
	if r.err != nil && r.idx >= r.errAt {
		return r.err
	}
	return nil
}

func (r *jobRows) Next() bool {
	if r.err != nil && r.idx >= r.errAt {
		return false
	}
	if r.idx < len(r.jobs) {
		r.idx++
		return true
	}
	return false
}

func (r *jobRows) Scan(dest ...any) error {
	assignJob(dest, r.jobs[r.idx-1])
	return nil
}

func assignJob(dest []any, job domain.Job) {
	*(dest[0].(*string)) = job.ID
	*(dest[1].(*string)) = job.UserID
	*(dest[2].(*domain.JobType)) = job.Type
	*(dest[3].(*domain.JobStatus)) = job.Status
	*(dest[4].(*int)) = job.Progress
	*(dest[5].(*string)) = job.CurrentStep
	*(dest[6].(*json.RawMessage)) = job.InputData
	*(dest[7].(*json.RawMessage)) = job.ResultData
	*(dest[8].(*string)) = job.ErrorMessage
	*(dest[9].(*int)) = job.RetryCount
	*(dest[10].(*int)) = job.MaxRetries
	*(dest[11].(*time.Time)) = job.CreatedAt
	*(dest[12].(*time.Time)) = job.UpdatedAt
	*(dest[13].(**time.Time)) = job.StartedAt
	*(dest[14].(**time.Time)) = job.CompletedAt
}

var _ pgx.Rows = (*jobRows)(nil)
