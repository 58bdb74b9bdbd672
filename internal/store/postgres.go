package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/notify"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Migrate creates the tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutUser upserts a user's preferences and profile.
func (p *Postgres) PutUser(ctx context.Context, prefs model.Preferences, profile model.Profile) error {
	profile.UserID = prefs.UserID
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperrors.Persistence("begin transaction", err).WithUser(prefs.UserID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO user_preferences (user_id, auto_search_enabled, cadence, data)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET auto_search_enabled = $2, cadence = $3, data = $4, updated_at = NOW()`,
		prefs.UserID, prefs.AutoSearchEnabled, string(prefs.Cadence), prefsJSON,
	)
	if err != nil {
		return apperrors.Persistence("save preferences", err).WithUser(prefs.UserID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, data) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET data = $2, updated_at = NOW()`,
		prefs.UserID, profileJSON,
	)
	if err != nil {
		return apperrors.Persistence("save profile", err).WithUser(prefs.UserID)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Persistence("commit user", err).WithUser(prefs.UserID)
	}
	return nil
}

func (p *Postgres) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var prefs model.Preferences
	if err := p.getJSON(ctx, `SELECT data FROM user_preferences WHERE user_id = $1`, userID, &prefs); err != nil {
		return nil, wrapRead("load preferences", userID, err)
	}
	prefs.UserID = userID
	return &prefs, nil
}

func (p *Postgres) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	if err := p.getJSON(ctx, `SELECT data FROM user_profiles WHERE user_id = $1`, userID, &profile); err != nil {
		return nil, wrapRead("load profile", userID, err)
	}
	profile.UserID = userID
	return &profile, nil
}

func (p *Postgres) getJSON(ctx context.Context, query, userID string, dst any) error {
	var data []byte
	if err := p.pool.QueryRow(ctx, query, userID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

func wrapRead(what, userID string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.InvalidInput(what, err).WithUser(userID)
	}
	return apperrors.Persistence(what, err).WithUser(userID)
}

func (p *Postgres) ListAutoSearchUsers(ctx context.Context) ([]Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT user_id, cadence FROM user_preferences WHERE auto_search_enabled ORDER BY user_id`)
	if err != nil {
		return nil, apperrors.Persistence("list auto search users", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var s Subscription
		var cadence string
		if err := rows.Scan(&s.UserID, &cadence); err != nil {
			return nil, apperrors.Persistence("scan auto search user", err)
		}
		s.Cadence = model.Cadence(cadence)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("list auto search users", err)
	}
	return subs, nil
}

// ReplaceResults deletes the previous result set and inserts the new one in
// a single transaction, so readers never see a mix of two runs.
func (p *Postgres) ReplaceResults(ctx context.Context, userID string, results []model.ScoredJob) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperrors.Persistence("begin transaction", err).WithUser(userID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM scored_jobs WHERE user_id = $1`, userID); err != nil {
		return apperrors.Persistence("clear results", err).WithUser(userID)
	}

	batch := &pgx.Batch{}
	for i, r := range results {
		job, err := json.Marshal(r.Job)
		if err != nil {
			return apperrors.Internal("encode job", err).WithUser(userID)
		}
		breakdown, err := json.Marshal(r.Breakdown)
		if err != nil {
			return apperrors.Internal("encode breakdown", err).WithUser(userID)
		}
		batch.Queue(
			`INSERT INTO scored_jobs (user_id, job_id, position, final_score, job, breakdown, scored_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			userID, r.Job.ID, i, r.Breakdown.FinalScore, job, breakdown, r.Breakdown.ScoredAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperrors.Persistence("insert results", err).WithUser(userID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Persistence("commit results", err).WithUser(userID)
	}
	return nil
}

func (p *Postgres) Results(ctx context.Context, userID string) ([]model.ScoredJob, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT job, breakdown FROM scored_jobs WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, apperrors.Persistence("load results", err).WithUser(userID)
	}
	defer rows.Close()

	var out []model.ScoredJob
	for rows.Next() {
		var job, breakdown []byte
		if err := rows.Scan(&job, &breakdown); err != nil {
			return nil, apperrors.Persistence("scan result", err).WithUser(userID)
		}
		var sj model.ScoredJob
		if err := json.Unmarshal(job, &sj.Job); err != nil {
			return nil, apperrors.Persistence("decode job", err).WithUser(userID)
		}
		if err := json.Unmarshal(breakdown, &sj.Breakdown); err != nil {
			return nil, apperrors.Persistence("decode breakdown", err).WithUser(userID)
		}
		out = append(out, sj)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("load results", err).WithUser(userID)
	}
	return out, nil
}

func (p *Postgres) HasNotification(ctx context.Context, userID string, jobIDs []string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE user_id = $1 AND (job_id = ANY($2) OR job_aliases && $2)
		 )`,
		userID, jobIDs,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

func (p *Postgres) CountImmediateSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND tier = $2 AND sent_at >= $3`,
		userID, string(model.TierImmediate), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func (p *Postgres) RecordNotification(ctx context.Context, rec model.NotificationRecord) error {
	aliases := rec.JobAliases
	if aliases == nil {
		aliases = []string{}
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, job_id, job_aliases, channel, tier, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, job_id) DO NOTHING`,
		rec.ID, rec.UserID, rec.JobID, aliases, rec.Channel, string(rec.Tier), rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notify.ErrAlreadyRecorded
	}
	return nil
}
