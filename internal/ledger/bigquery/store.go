// Package bigquery is the warehouse ledger. BigQuery enforces no keys, so
// uniqueness and references are checked inside the DML statements that write.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Table names inside the dataset.
const (
	usersTable        = "users"
	categoriesTable   = "categories"
	transactionsTable = "transactions"
	budgetsTable      = "budgets"
)

// Store is a ledger.Store backed by one BigQuery dataset.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
	log     zerolog.Logger
}

// New opens a client for project and returns a Store over dataset.
func New(ctx context.Context, project, dataset string, log zerolog.Logger) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("New: bigquery client: %w", err)
	}
	return NewWithClient(client, dataset, log), nil
}

// NewWithClient returns a Store that uses an existing client. The Store owns
// the client from then on and closes it in Close.
func NewWithClient(client *bigquery.Client, dataset string, log zerolog.Logger) *Store {
	return &Store{client: client, project: client.Project(), dataset: dataset, log: log}
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return qualifiedTable(s.project, s.dataset, name)
}

func qualifiedTable(project, dataset, name string) string {
	return "`" + project + "." + dataset + "." + name + "`"
}

func (s *Store) query(sql string, params ...bigquery.QueryParameter) *bigquery.Query {
	q := s.client.Query(sql)
	q.Parameters = params
	return q
}

// exec runs a DML statement and returns the number of rows it touched, or -1
// when BigQuery reports no statistics.
func (s *Store) exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) (int64, error) {
	job, err := s.query(sql, params...).Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return -1, nil
}

func readAll[T any](ctx context.Context, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	out := []T{}
	for {
		var r T
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

type countRow struct {
	N int64 `bigquery:"n"`
}

func (s *Store) count(ctx context.Context, sql string, params ...bigquery.QueryParameter) (int64, error) {
	rows, err := readAll[countRow](ctx, s.query(sql, params...))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}
