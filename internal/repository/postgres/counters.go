package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

var counterColumns = []string{
	"user_id",
	"current_points",
	"lifetime_points",
	"day_seconds",
	"week_seconds",
	"month_seconds",
	"all_time_seconds",
	"day_reset_at",
	"week_reset_at",
	"month_reset_at",
	"all_time_reset_at",
	"updated_at",
}

// CounterRepository implements port.CounterRepository backed by PostgreSQL.
type CounterRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCounterRepository constructs a counter repository.
func NewCounterRepository(exec pgExecutor) *CounterRepository {
	return &CounterRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *CounterRepository) WithTx(tx pgx.Tx) *CounterRepository {
	if tx == nil {
		return r
	}
	return &CounterRepository{exec: tx, builder: r.builder}
}

// Get reads the counters of a user.
func (r *CounterRepository) Get(ctx context.Context, userID string) (*domain.UserWifiCounters, error) {
	return r.selectOne(ctx, userID, false)
}

// LoadForUpdate inserts a zeroed row when missing, then reads it with a row lock.
func (r *CounterRepository) LoadForUpdate(ctx context.Context, userID string, now time.Time) (*domain.UserWifiCounters, error) {
	fresh := domain.NewUserWifiCounters(userID, now)
	stmt, args, err := r.builder.Insert(countersTable).
		Columns(counterColumns...).
		Values(
			fresh.UserID,
			fresh.CurrentPoints,
			fresh.LifetimePoints,
			fresh.DaySeconds,
			fresh.WeekSeconds,
			fresh.MonthSeconds,
			fresh.AllTimeSeconds,
			fresh.DayResetAt,
			fresh.WeekResetAt,
			fresh.MonthResetAt,
			fresh.AllTimeResetAt,
			fresh.UpdatedAt,
		).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ensure counters sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("ensure counters: %w", err)
	}

	return r.selectOne(ctx, userID, true)
}

func (r *CounterRepository) selectOne(ctx context.Context, userID string, forUpdate bool) (*domain.UserWifiCounters, error) {
	query := r.builder.
		Select(counterColumns...).
		From(countersTable).
		Where(squirrel.Eq{"user_id": userID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select counters sql: %w", err)
	}

	var c domain.UserWifiCounters
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&c.UserID,
		&c.CurrentPoints,
		&c.LifetimePoints,
		&c.DaySeconds,
		&c.WeekSeconds,
		&c.MonthSeconds,
		&c.AllTimeSeconds,
		&c.DayResetAt,
		&c.WeekResetAt,
		&c.MonthResetAt,
		&c.AllTimeResetAt,
		&c.UpdatedAt,
	); err != nil {
		err = mapNoRows(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan counters: %w", err)
	}
	return &c, nil
}

// ResetPeriods zeroes every rolling counter whose reset stamp precedes its period boundary.
// The comparison happens in the UPDATE itself so concurrent resets converge.
func (r *CounterRepository) ResetPeriods(ctx context.Context, userID string, b domain.PeriodBoundaries) error {
	stmt, args, err := r.builder.Update(countersTable).
		Set("day_seconds", squirrel.Expr("CASE WHEN day_reset_at < ? THEN 0 ELSE day_seconds END", b.Day)).
		Set("day_reset_at", squirrel.Expr("CASE WHEN day_reset_at < ? THEN ? ELSE day_reset_at END", b.Day, b.At)).
		Set("week_seconds", squirrel.Expr("CASE WHEN week_reset_at < ? THEN 0 ELSE week_seconds END", b.Week)).
		Set("week_reset_at", squirrel.Expr("CASE WHEN week_reset_at < ? THEN ? ELSE week_reset_at END", b.Week, b.At)).
		Set("month_seconds", squirrel.Expr("CASE WHEN month_reset_at < ? THEN 0 ELSE month_seconds END", b.Month)).
		Set("month_reset_at", squirrel.Expr("CASE WHEN month_reset_at < ? THEN ? ELSE month_reset_at END", b.Month, b.At)).
		Set("updated_at", b.At).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset counters sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Increment adds the per-period seconds and the points to both point totals in one statement.
func (r *CounterRepository) Increment(ctx context.Context, userID string, delta domain.CounterDelta) error {
	stmt, args, err := r.builder.Update(countersTable).
		Set("current_points", squirrel.Expr("current_points + ?", delta.Points)).
		Set("lifetime_points", squirrel.Expr("lifetime_points + ?", delta.Points)).
		Set("day_seconds", squirrel.Expr("day_seconds + ?", delta.DaySeconds)).
		Set("week_seconds", squirrel.Expr("week_seconds + ?", delta.WeekSeconds)).
		Set("month_seconds", squirrel.Expr("month_seconds + ?", delta.MonthSeconds)).
		Set("all_time_seconds", squirrel.Expr("all_time_seconds + ?", delta.AllTimeSeconds)).
		Set("updated_at", delta.At.UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment counters sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("increment counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ApplyCorrection overwrites only the fields present in the correction.
func (r *CounterRepository) ApplyCorrection(ctx context.Context, userID string, correction domain.CounterCorrection) error {
	if correction.Empty() {
		return nil
	}

	update := r.builder.Update(countersTable)
	if correction.CurrentPoints != nil {
		update = update.Set("current_points", *correction.CurrentPoints)
	}
	if correction.LifetimePoints != nil {
		update = update.Set("lifetime_points", *correction.LifetimePoints)
	}
	if correction.AllTimeSeconds != nil {
		update = update.Set("all_time_seconds", *correction.AllTimeSeconds)
	}

	stmt, args, err := update.
		Set("updated_at", correction.At.UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build correct counters sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("correct counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListUserIDs pages through every user that owns counters or sessions, ordered by id.
func (r *CounterRepository) ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	query := r.builder.
		Select("u.user_id").
		From("(SELECT user_id FROM " + countersTable + " UNION SELECT user_id FROM " + sessionsTable + ") AS u").
		Where(squirrel.Gt{"u.user_id": afterUserID}).
		OrderBy("u.user_id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

var _ port.CounterRepository = (*CounterRepository)(nil)
