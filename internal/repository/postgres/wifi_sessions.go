package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"ip_address",
	"ssid",
	"bssid",
	"latitude",
	"longitude",
	"location_accuracy",
	"location_timestamp",
	"start_time",
	"end_time",
	"duration_seconds",
	"points_earned",
	"is_active",
	"session_date",
	"metadata",
	"created_at",
	"updated_at",
}

// WifiSessionRepository implements port.WifiSessionRepository backed by PostgreSQL.
type WifiSessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewWifiSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewWifiSessionRepository(exec pgExecutor) *WifiSessionRepository {
	return &WifiSessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *WifiSessionRepository) WithTx(tx pgx.Tx) *WifiSessionRepository {
	if tx == nil {
		return r
	}
	return &WifiSessionRepository{exec: tx, builder: r.builder}
}

// Create persists a new session. A second active session for the same user violates the partial
// unique index and is reported as repository.ErrConflict.
func (r *WifiSessionRepository) Create(ctx context.Context, session domain.WifiSession) error {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}

	var lat, lng, accuracy, fixAt any
	if session.Location != nil {
		lat = session.Location.Latitude
		lng = session.Location.Longitude
		accuracy = session.Location.Accuracy
		fixAt = optionalTime(session.Location.Timestamp)
	}

	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(append(append([]string{}, sessionColumns...), "correlation_id", "source")...).
		Values(
			session.ID,
			session.UserID,
			optionalString(session.Network.IP),
			optionalString(session.Network.SSID),
			optionalString(session.Network.BSSID),
			lat,
			lng,
			accuracy,
			fixAt,
			session.StartTime.UTC(),
			optionalTime(session.EndTime),
			session.DurationSeconds,
			session.PointsEarned,
			session.IsActive,
			domain.SessionDay(session.StartTime),
			metadata,
			session.CreatedAt.UTC(),
			session.UpdatedAt.UTC(),
			optionalText(session.Metadata.CorrelationID),
			string(session.Metadata.Source),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert wifi session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert wifi session: %w", err)
	}
	return nil
}

// GetByID fetches a session by its identifier.
func (r *WifiSessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.WifiSession, error) {
	return r.getOne(ctx, squirrel.Eq{"id": sessionID})
}

// FindActiveByUser returns the open session of the user.
func (r *WifiSessionRepository) FindActiveByUser(ctx context.Context, userID string) (*domain.WifiSession, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "is_active": true})
}

// FindByCorrelationID returns the session recorded for a background-sync correlation id.
func (r *WifiSessionRepository) FindByCorrelationID(ctx context.Context, userID, correlationID string) (*domain.WifiSession, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "correlation_id": correlationID})
}

func (r *WifiSessionRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.WifiSession, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(where).
		OrderBy("start_time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select wifi session sql: %w", err)
	}

	session, err := scanWifiSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan wifi session: %w", err)
	}
	return session, nil
}

// CloseIfActive writes the closing values while the row is still active and reports whether it did.
func (r *WifiSessionRepository) CloseIfActive(ctx context.Context, session domain.WifiSession) (bool, error) {
	if session.EndTime == nil {
		return false, fmt.Errorf("end time is required to close session %s", session.ID)
	}
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal session metadata: %w", err)
	}

	stmt, args, err := r.builder.Update(sessionsTable).
		Set("end_time", session.EndTime.UTC()).
		Set("duration_seconds", session.DurationSeconds).
		Set("points_earned", session.PointsEarned).
		Set("is_active", false).
		Set("metadata", metadata).
		Set("updated_at", session.UpdatedAt.UTC()).
		Where(squirrel.Eq{"id": session.ID, "is_active": true}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build close wifi session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("close wifi session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListStaleActive returns active sessions that started before the cutoff, oldest first.
func (r *WifiSessionRepository) ListStaleActive(ctx context.Context, startedBefore time.Time, limit int) ([]domain.WifiSession, error) {
	query := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Lt{"start_time": startedBefore.UTC()}).
		OrderBy("start_time ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select stale sessions sql: %w", err)
	}
	return r.list(ctx, stmt, args)
}

// Summarize aggregates closed sessions of the user started at or after since.
func (r *WifiSessionRepository) Summarize(ctx context.Context, userID string, since time.Time) (domain.SessionSummary, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)", "COALESCE(SUM(duration_seconds), 0)", "COALESCE(SUM(points_earned), 0)").
		From(sessionsTable).
		Where(squirrel.Eq{"user_id": userID, "is_active": false}).
		Where(squirrel.NotEq{"end_time": nil}).
		Where(squirrel.GtOrEq{"start_time": since.UTC()}).
		ToSql()
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("build summarize sessions sql: %w", err)
	}

	var summary domain.SessionSummary
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&summary.Sessions, &summary.Seconds, &summary.Points); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("summarize sessions: %w", err)
	}
	return summary, nil
}

// ListClosedWithoutLedger returns closed, point-earning sessions lacking their WIFI_SESSION entry.
func (r *WifiSessionRepository) ListClosedWithoutLedger(ctx context.Context, userID string) ([]domain.WifiSession, error) {
	stmt, args, err := r.builder.
		Select(prefixed("s", sessionColumns)...).
		From(sessionsTable+" AS s").
		Where(squirrel.Eq{"s.user_id": userID, "s.is_active": false}).
		Where(squirrel.NotEq{"s.end_time": nil}).
		Where(squirrel.Gt{"s.points_earned": 0}).
		Where("NOT EXISTS (SELECT 1 FROM "+ledgerTable+" AS t WHERE t.user_id = s.user_id AND t.type = ? AND t.session_start = s.start_time AND t.session_end = s.end_time)",
			string(domain.TransactionWifiSession)).
		OrderBy("s.start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select unledgered sessions sql: %w", err)
	}
	return r.list(ctx, stmt, args)
}

func (r *WifiSessionRepository) list(ctx context.Context, stmt string, args []any) ([]domain.WifiSession, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query wifi sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.WifiSession, 0)
	for rows.Next() {
		session, err := scanWifiSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wifi session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wifi sessions: %w", err)
	}
	return sessions, nil
}

func scanWifiSession(row pgx.Row) (*domain.WifiSession, error) {
	var (
		session  domain.WifiSession
		ip       sql.NullString
		ssid     sql.NullString
		bssid    sql.NullString
		lat      sql.NullFloat64
		lng      sql.NullFloat64
		accuracy sql.NullFloat64
		fixAt    sql.NullTime
		endTime  sql.NullTime
		metadata []byte
	)

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&ip,
		&ssid,
		&bssid,
		&lat,
		&lng,
		&accuracy,
		&fixAt,
		&session.StartTime,
		&endTime,
		&session.DurationSeconds,
		&session.PointsEarned,
		&session.IsActive,
		&session.SessionDate,
		&metadata,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}

	session.Network = domain.NetworkEvidence{
		IP:    nullableStringPtr(ip),
		SSID:  nullableStringPtr(ssid),
		BSSID: nullableStringPtr(bssid),
	}
	if lat.Valid && lng.Valid {
		session.Location = &domain.LocationEvidence{
			Latitude:  lat.Float64,
			Longitude: lng.Float64,
			Accuracy:  accuracy.Float64,
			Timestamp: nullableTimePtr(fixAt),
		}
	}
	session.StartTime = session.StartTime.UTC()
	session.EndTime = nullableTimePtr(endTime)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
	}

	return &session, nil
}

var _ port.WifiSessionRepository = (*WifiSessionRepository)(nil)
