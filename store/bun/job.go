package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/tenant"
)

// SubmitJob persists a new job.
func (s *Store) SubmitJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return baza.ErrJobAlreadyExists
		}
		return fmt.Errorf("baza/bun: submit job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrJobNotFound
		}
		return nil, fmt.Errorf("baza/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// RecentJob returns the newest non-expired job with the given name.
func (s *Store) RecentJob(ctx context.Context, tenantID id.TenantID, name string) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Where("expired_at IS NULL").
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrJobNotFound
		}
		return nil, fmt.Errorf("baza/bun: recent job: %w", err)
	}
	return fromJobModel(m)
}

// NameBusy reports whether an un-expired, unfinished job holds the name.
func (s *Store) NameBusy(ctx context.Context, tenantID id.TenantID, name string) (bool, error) {
	exists, err := s.db.NewSelect().
		TableExpr("baza_jobs AS j").
		Where("j.tenant_id = ?", tenantID.String()).
		Where("j.name = ?", name).
		Where("j.expired_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM baza_results r WHERE r.job_id = j.id)").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("baza/bun: name busy: %w", err)
	}
	return exists, nil
}

// NameExists reports whether any un-expired job holds the name.
func (s *Store) NameExists(ctx context.Context, tenantID id.TenantID, name string) (bool, error) {
	exists, err := s.db.NewSelect().
		TableExpr("baza_jobs").
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Where("expired_at IS NULL").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("baza/bun: name exists: %w", err)
	}
	return exists, nil
}

// UnclaimedJobs returns unclaimed, unfinished jobs in FIFO order.
func (s *Store) UnclaimedJobs(ctx context.Context) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("taken = ''").
		Where("expired_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM baza_results r WHERE r.job_id = j.id)").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: unclaimed jobs: %w", err)
	}
	return convertJobs(models)
}

// TakeJob claims the job for owner with one conditional update; a
// racing claimer loses by finding zero rows updated.
func (s *Store) TakeJob(ctx context.Context, jobID id.JobID, owner string) (bool, error) {
	res, err := s.db.NewUpdate().
		TableExpr("baza_jobs AS j").
		Set("taken = ?", owner).
		Set("taken_at = NOW()").
		Set("updated_at = NOW()").
		Where("j.id = ?", jobID.String()).
		Where("j.taken = ''").
		Where("j.expired_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM baza_results r WHERE r.job_id = j.id)").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("baza/bun: take job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows == 1, nil
}

// ReleaseJob clears the claim iff owner holds it.
func (s *Store) ReleaseJob(ctx context.Context, jobID id.JobID, owner string) error {
	_, err := s.db.NewUpdate().
		TableExpr("baza_jobs").
		Set("taken = ''").
		Set("taken_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Where("taken = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: release job: %w", err)
	}
	return nil
}

// FinishJob attaches the result. The uniqueness constraint on job_id
// rejects a second result.
func (s *Store) FinishJob(ctx context.Context, r *job.Result) error {
	m := toResultModel(r)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return baza.ErrResultExists
		}
		return fmt.Errorf("baza/bun: finish job: %w", err)
	}
	return nil
}

// FailJob records a failed run in one transaction: the result is
// inserted or amended and the note lands in the job's taken column.
func (s *Store) FailJob(ctx context.Context, jobID id.JobID, text, note string) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(resultModel)
		err := tx.NewSelect().Model(existing).
			Where("job_id = ?", jobID.String()).
			For("UPDATE").
			Limit(1).
			Scan(ctx)
		switch {
		case isNoRows(err):
			m := &resultModel{
				ID:        id.NewResultID().String(),
				JobID:     jobID.String(),
				Stdout:    text,
				Exit:      1,
				Msec:      1,
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			}
			if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
				return fmt.Errorf("insert failure result: %w", err)
			}
		case err != nil:
			return fmt.Errorf("lock result: %w", err)
		default:
			_, err = tx.NewUpdate().
				TableExpr("baza_results").
				Set("stdout = ? || E'\\n' || stdout", text).
				Set("exit = 1").
				Set("updated_at = NOW()").
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("amend result: %w", err)
			}
		}

		res, err := tx.NewUpdate().
			TableExpr("baza_jobs").
			Set("taken = ?", truncate(note, 255)).
			Set("updated_at = NOW()").
			Where("id = ?", jobID.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark job: %w", err)
		}
		rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
		if rows == 0 {
			return baza.ErrJobNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("baza/bun: fail job: %w", err)
	}
	return nil
}

// ResultFor returns the job's result.
func (s *Store) ResultFor(ctx context.Context, jobID id.JobID) (*job.Result, error) {
	m := new(resultModel)
	err := s.db.NewSelect().Model(m).
		Where("job_id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrResultNotFound
		}
		return nil, fmt.Errorf("baza/bun: result for job: %w", err)
	}
	return fromResultModel(m)
}

// CleanStreak counts consecutive recent clean runs of the name before
// the given job. The scan walks the history newest-first and stops at
// the first unfinished or erroneous run.
func (s *Store) CleanStreak(ctx context.Context, tenantID id.TenantID, name string, before id.JobID) (int, error) {
	var rows []struct {
		Exit   *int `bun:"exit"`
		Errors *int `bun:"errors"`
	}
	err := s.db.NewRaw(`
		SELECT r.exit AS exit, r.errors AS errors
		FROM baza_jobs j
		LEFT JOIN baza_results r ON r.job_id = j.id
		WHERE j.tenant_id = ? AND j.name = ? AND j.id != ?
		  AND j.expired_at IS NULL
		ORDER BY j.created_at DESC`,
		tenantID.String(), name, before.String(),
	).Scan(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("baza/bun: clean streak: %w", err)
	}

	streak := 0
	for _, r := range rows {
		if r.Exit == nil || *r.Exit != 0 || r.Errors == nil || *r.Errors > 0 {
			break
		}
		streak++
	}
	return streak, nil
}

// ExpireJob stamps the expiry iff it is not set yet.
func (s *Store) ExpireJob(ctx context.Context, jobID id.JobID, at time.Time) error {
	res, err := s.db.NewUpdate().
		TableExpr("baza_jobs").
		Set("expired_at = ?", at.UTC()).
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Where("expired_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: expire job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		// Already expired is fine; a missing job is not.
		exists, exErr := s.db.NewSelect().
			TableExpr("baza_jobs").
			Where("id = ?", jobID.String()).
			Exists(ctx)
		if exErr != nil {
			return fmt.Errorf("baza/bun: expire job: %w", exErr)
		}
		if !exists {
			return baza.ErrJobNotFound
		}
	}
	return nil
}

// ExpirableJobs returns un-expired jobs whose result is older than the
// threshold.
func (s *Store) ExpirableJobs(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("expired_at IS NULL").
		Where("EXISTS (SELECT 1 FROM baza_results r WHERE r.job_id = j.id AND r.created_at <= ?)", cutoff).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: expirable jobs: %w", err)
	}
	return convertJobs(models)
}

// StuckJobs returns un-expired jobs claimed longer ago than the
// threshold with no result.
func (s *Store) StuckJobs(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("expired_at IS NULL").
		Where("taken != ''").
		Where("taken_at IS NOT NULL").
		Where("taken_at <= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM baza_results r WHERE r.job_id = j.id)").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: stuck jobs: %w", err)
	}
	return convertJobs(models)
}

// TestJobs returns un-expired jobs submitted with the disposable test
// token, older than the threshold.
func (s *Store) TestJobs(ctx context.Context, olderThan time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("expired_at IS NULL").
		Where("j.created_at <= ?", cutoff).
		Where("EXISTS (SELECT 1 FROM baza_tokens t WHERE t.id = j.token_id AND t.text = ?)", tenant.TesterToken).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: test jobs: %w", err)
	}
	return convertJobs(models)
}

// RecordTrail persists one diagnostic artifact of a run.
func (s *Store) RecordTrail(ctx context.Context, t *job.Trail) error {
	m := toTrailModel(t)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("baza/bun: record trail: %w", err)
	}
	return nil
}

// TrailsFor returns the job's trails in creation order.
func (s *Store) TrailsFor(ctx context.Context, jobID id.JobID) ([]*job.Trail, error) {
	var models []trailModel
	err := s.db.NewSelect().Model(&models).
		Where("job_id = ?", jobID.String()).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: trails for job: %w", err)
	}

	out := make([]*job.Trail, 0, len(models))
	for i := range models {
		t, convErr := fromTrailModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, t)
	}
	return out, nil
}

func convertJobs(models []jobModel) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
