package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/moviebot/core/logger"
)

const (
	insertUserSQL = `INSERT INTO users (telegram_id) VALUES ($1) ON CONFLICT (telegram_id) DO NOTHING`

	selectUserSQL = `SELECT telegram_id, subscription_end_date, todays_requests_count, last_request_date
FROM users WHERE telegram_id = $1`

	updateUserSQL = `UPDATE users
SET subscription_end_date = $2, todays_requests_count = $3, last_request_date = $4, updated_at = now()
WHERE telegram_id = $1`
)

// PostgresStore keeps quota records in the users table. Update runs in a transaction
// holding a row lock, so concurrent checks for one user are serialized.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a store over db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetOrCreate implements Store.
func (p *PostgresStore) GetOrCreate(ctx context.Context, id int64) (UserQuota, error) {
	if _, err := p.db.ExecContext(ctx, insertUserSQL, id); err != nil {
		return UserQuota{}, fmt.Errorf("insert user: %w", err)
	}
	var q UserQuota
	if err := p.db.GetContext(ctx, &q, selectUserSQL, id); err != nil {
		return UserQuota{}, fmt.Errorf("select user: %w", err)
	}
	return normalizeDates(q), nil
}

// Update implements Store.
func (p *PostgresStore) Update(ctx context.Context, id int64, fn MutateFunc) (_ UserQuota, err error) {
	start := time.Now()
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return UserQuota{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.DB.Warn("rollback failed",
					slog.String("event", "db.rollback"),
					slog.Int64("user_id", id),
					slog.String("err", rbErr.Error()),
				)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, insertUserSQL, id); err != nil {
		return UserQuota{}, fmt.Errorf("insert user: %w", err)
	}
	var q UserQuota
	if err = tx.GetContext(ctx, &q, selectUserSQL+" FOR UPDATE", id); err != nil {
		return UserQuota{}, fmt.Errorf("lock user: %w", err)
	}
	q = normalizeDates(q)

	changed, err := fn(&q)
	if err != nil {
		return UserQuota{}, err
	}
	if changed {
		_, err = tx.ExecContext(ctx, updateUserSQL,
			id,
			q.SubscriptionEndDate.Format(DateLayout),
			q.TodaysRequestCount,
			q.LastRequestDate.Format(DateLayout),
		)
		if err != nil {
			return UserQuota{}, fmt.Errorf("update user: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return UserQuota{}, fmt.Errorf("commit: %w", err)
	}

	if logger.ShouldSampleDebug() {
		logger.DB.Debug("quota row updated",
			slog.String("event", "db.quota.update"),
			slog.Int64("user_id", id),
			slog.Bool("changed", changed),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return q, nil
}

// Ping checks the connection; the service exposes it as its health check.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// normalizeDates strips the driver's location from DATE columns.
func normalizeDates(q UserQuota) UserQuota {
	q.SubscriptionEndDate = CivilDate(q.SubscriptionEndDate)
	q.LastRequestDate = CivilDate(q.LastRequestDate)
	return q
}
