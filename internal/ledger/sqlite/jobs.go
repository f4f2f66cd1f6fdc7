package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
)

const jobColumns = `task_id, user_id, month, status, filename, error, created_at, started_at, completed_at`

// SaveJob implements jobs.JobStore.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ReportJob) error {
	if job.TaskID == "" {
		return fmt.Errorf("SaveJob: task ID is required")
	}
	var filename string
	if job.Result != nil {
		filename = job.Result.Filename
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO report_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.TaskID, job.UserID, job.Month, string(job.Status), nullString(filename), job.Error,
		formatTime(job.CreatedAt), nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("SaveJob: insert: %w", err)
	}
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(ctx context.Context, taskID string) (*jobs.ReportJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM report_jobs WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("GetJob: query: %w", err)
	}
	defer rows.Close()

	list, err := scanJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("GetJob: %w", err)
	}
	if len(list) == 0 {
		return nil, &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	return list[0], nil
}

// ListJobs implements jobs.JobStore.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ReportJob, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Filename != "" {
		where = append(where, "filename = ?")
		args = append(args, filter.Filename)
	}

	query := `SELECT ` + jobColumns + ` FROM report_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, task_id`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: query: %w", err)
	}
	defer rows.Close()

	list, err := scanJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: %w", err)
	}
	return list, nil
}

// MarkStarted implements jobs.JobStore.
func (s *Store) MarkStarted(ctx context.Context, taskID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_jobs SET started_at = ? WHERE task_id = ? AND status = ?`,
		formatTime(at), taskID, string(jobs.JobStatusPending))
	if err != nil {
		return fmt.Errorf("MarkStarted: update: %w", err)
	}
	return s.explainNoop(ctx, res, taskID)
}

// CompleteJob implements jobs.JobStore. The status guard in the WHERE clause
// makes the terminal write a compare-and-set.
func (s *Store) CompleteJob(ctx context.Context, taskID string, status jobs.JobStatus, result *jobs.ReportResult, errMsg string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("CompleteJob: %s is not a terminal status", status)
	}
	var filename string
	if status == jobs.JobStatusSuccess && result != nil {
		filename = result.Filename
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_jobs SET status = ?, filename = ?, error = ?, completed_at = ?
		WHERE task_id = ? AND status = ?`,
		string(status), nullString(filename), errMsg, formatTime(at), taskID, string(jobs.JobStatusPending))
	if err != nil {
		return fmt.Errorf("CompleteJob: update: %w", err)
	}
	return s.explainNoop(ctx, res, taskID)
}

// explainNoop turns a guarded update that matched nothing into NotFound or
// ErrJobAlreadyTerminal.
func (s *Store) explainNoop(ctx context.Context, res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM report_jobs WHERE task_id = ?`, taskID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Resource: "task", ID: taskID}
	}
	if err != nil {
		return fmt.Errorf("lookup job %s: %w", taskID, err)
	}
	return jobs.ErrJobAlreadyTerminal
}

// PurgeJobs implements jobs.JobStore.
func (s *Store) PurgeJobs(ctx context.Context, cutoff time.Time) ([]*jobs.ReportJob, error) {
	var purged []*jobs.ReportJob
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM report_jobs
			WHERE status != ? AND completed_at IS NOT NULL AND completed_at < ?`,
			string(jobs.JobStatusPending), formatTime(cutoff))
		if err != nil {
			return fmt.Errorf("PurgeJobs: query: %w", err)
		}
		purged, err = scanJobs(rows)
		rows.Close()
		if err != nil {
			return fmt.Errorf("PurgeJobs: %w", err)
		}
		for _, job := range purged {
			if _, err := tx.ExecContext(ctx, `DELETE FROM report_jobs WHERE task_id = ?`, job.TaskID); err != nil {
				return fmt.Errorf("PurgeJobs: delete %s: %w", job.TaskID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purged, nil
}

func scanJobs(rows *sql.Rows) ([]*jobs.ReportJob, error) {
	var out []*jobs.ReportJob
	for rows.Next() {
		var (
			job                         jobs.ReportJob
			status, created             string
			filename, started, finished sql.NullString
		)
		if err := rows.Scan(&job.TaskID, &job.UserID, &job.Month, &status, &filename, &job.Error,
			&created, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		job.Status = jobs.JobStatus(status)
		if filename.Valid {
			job.Result = &jobs.ReportResult{Filename: filename.String}
		}
		var err error
		if job.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("scan %s: created_at: %w", job.TaskID, err)
		}
		if job.StartedAt, err = parseNullTime(started); err != nil {
			return nil, fmt.Errorf("scan %s: started_at: %w", job.TaskID, err)
		}
		if job.CompletedAt, err = parseNullTime(finished); err != nil {
			return nil, fmt.Errorf("scan %s: completed_at: %w", job.TaskID, err)
		}
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
