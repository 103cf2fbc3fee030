package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

// LedgerRepository implements port.LedgerRepository backed by PostgreSQL.
type LedgerRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLedgerRepository constructs a ledger repository.
func NewLedgerRepository(exec pgExecutor) *LedgerRepository {
	return &LedgerRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	if tx == nil {
		return r
	}
	return &LedgerRepository{exec: tx, builder: r.builder}
}

// ExistsWifiEntry reports whether a WIFI_SESSION entry already covers the interval.
func (r *LedgerRepository) ExistsWifiEntry(ctx context.Context, key domain.LedgerKey) (bool, error) {
	inner, args, err := r.builder.
		Select("1").
		From(ledgerTable).
		Where(squirrel.Eq{
			"user_id":       key.UserID,
			"type":          string(domain.TransactionWifiSession),
			"session_start": key.StartTime.UTC(),
			"session_end":   key.EndTime.UTC(),
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build ledger exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

// InsertWifiEntry appends the entry unless its dedup key is already present.
func (r *LedgerRepository) InsertWifiEntry(ctx context.Context, entry domain.PointTransaction) (bool, error) {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal ledger metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(ledgerTable).
		Columns("id", "user_id", "amount", "type", "session_start", "session_end", "metadata", "created_at").
		Values(
			entry.ID,
			entry.UserID,
			entry.Amount,
			string(entry.Type),
			entry.Metadata.StartTime.UTC(),
			entry.Metadata.EndTime.UTC(),
			metadata,
			entry.CreatedAt.UTC(),
		).
		Suffix("ON CONFLICT (user_id, session_start, session_end) WHERE type = 'WIFI_SESSION' DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert ledger sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Totals sums every entry of the user and the positive entries separately.
func (r *LedgerRepository) Totals(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	stmt, args, err := r.builder.
		Select("COALESCE(SUM(amount), 0)", "COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0)").
		From(ledgerTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("build ledger totals sql: %w", err)
	}

	var totals domain.LedgerTotals
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&totals.Current, &totals.Lifetime); err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("sum ledger: %w", err)
	}
	return totals, nil
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)
