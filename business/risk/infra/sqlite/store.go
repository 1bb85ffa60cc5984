// Package sqlite persists the risk ledger in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/risk/app"
	"github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS risk_tracking (
	user_id              TEXT PRIMARY KEY,
	daily_loss_usd       TEXT    NOT NULL,
	daily_profit_usd     TEXT    NOT NULL,
	daily_gas_used_usd   TEXT    NOT NULL,
	daily_trade_count    INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	trading_paused       INTEGER NOT NULL,
	period_start         INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS circuit_breaker_events (
	id              TEXT PRIMARY KEY,
	user_id         TEXT    NOT NULL,
	reason          TEXT    NOT NULL,
	trigger_value   TEXT    NOT NULL,
	threshold_value TEXT    NOT NULL,
	severity        TEXT    NOT NULL,
	created_at      INTEGER NOT NULL,
	resolved        INTEGER NOT NULL DEFAULT 0,
	resolved_at     INTEGER NOT NULL DEFAULT 0,
	resolved_by     TEXT    NOT NULL DEFAULT '',
	note            TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_breaker_events_user ON circuit_breaker_events(user_id, resolved);
`

const eventColumns = `id, user_id, reason, trigger_value, threshold_value, severity,
	created_at, resolved, resolved_at, resolved_by, note`

var _ app.Store = (*Store)(nil)

// Store is the SQLite ledger store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storeError("open", err)
	}
	// One connection: writes are serialized and an in-memory database
	// stays a single database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, storeError("enable WAL", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeError("create schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Update(ctx context.Context, fn func(tx app.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin", err)
	}
	if err := fn(&tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// Events returns all events of the user, newest first.
func (s *Store) Events(ctx context.Context, userID string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM circuit_breaker_events WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, storeError("list events", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Tracking(ctx context.Context, userID string) (*domain.Tracking, error) {
	var (
		loss, profit, gas   string
		trades, failures    int
		paused              bool
		periodStart, update int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT daily_loss_usd, daily_profit_usd, daily_gas_used_usd, daily_trade_count,
		       consecutive_failures, trading_paused, period_start, updated_at
		FROM risk_tracking WHERE user_id = ?`, userID).
		Scan(&loss, &profit, &gas, &trades, &failures, &paused, &periodStart, &update)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load tracking", err)
	}

	tr := &domain.Tracking{
		UserID:              userID,
		DailyTradeCount:     trades,
		ConsecutiveFailures: failures,
		TradingPaused:       paused,
		PeriodStart:         time.Unix(0, periodStart).UTC(),
		UpdatedAt:           time.Unix(0, update).UTC(),
	}
	if tr.DailyLossUSD, err = decimal.NewFromString(loss); err != nil {
		return nil, storeError("decode daily_loss_usd", err)
	}
	if tr.DailyProfitUSD, err = decimal.NewFromString(profit); err != nil {
		return nil, storeError("decode daily_profit_usd", err)
	}
	if tr.DailyGasUsedUSD, err = decimal.NewFromString(gas); err != nil {
		return nil, storeError("decode daily_gas_used_usd", err)
	}
	return tr, nil
}

func (t *tx) SaveTracking(ctx context.Context, tr *domain.Tracking) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO risk_tracking (user_id, daily_loss_usd, daily_profit_usd, daily_gas_used_usd,
			daily_trade_count, consecutive_failures, trading_paused, period_start, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			daily_loss_usd = excluded.daily_loss_usd,
			daily_profit_usd = excluded.daily_profit_usd,
			daily_gas_used_usd = excluded.daily_gas_used_usd,
			daily_trade_count = excluded.daily_trade_count,
			consecutive_failures = excluded.consecutive_failures,
			trading_paused = excluded.trading_paused,
			period_start = excluded.period_start,
			updated_at = excluded.updated_at`,
		tr.UserID, tr.DailyLossUSD.String(), tr.DailyProfitUSD.String(), tr.DailyGasUsedUSD.String(),
		tr.DailyTradeCount, tr.ConsecutiveFailures, tr.TradingPaused,
		tr.PeriodStart.UnixNano(), tr.UpdatedAt.UnixNano())
	if err != nil {
		return storeError("save tracking", err)
	}
	return nil
}

func (t *tx) UnresolvedEvent(ctx context.Context, userID, reason string) (*domain.Event, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM circuit_breaker_events
		WHERE user_id = ? AND reason = ? AND resolved = 0 ORDER BY created_at LIMIT 1`, userID, reason)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (t *tx) CountUnresolved(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM circuit_breaker_events WHERE user_id = ? AND resolved = 0`, userID).Scan(&n)
	if err != nil {
		return 0, storeError("count unresolved", err)
	}
	return n, nil
}

func (t *tx) Event(ctx context.Context, userID, id string) (*domain.Event, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM circuit_breaker_events WHERE user_id = ? AND id = ?`, userID, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.CodeEventNotFound, apperror.WithContext(id))
	}
	return e, err
}

func (t *tx) InsertEvent(ctx context.Context, e *domain.Event) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO circuit_breaker_events
		(id, user_id, reason, trigger_value, threshold_value, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Reason, e.TriggerValue.String(), e.ThresholdValue.String(),
		string(e.Severity), e.CreatedAt.UnixNano())
	if err != nil {
		return storeError("insert event", err)
	}
	return nil
}

func (t *tx) ResolveEvent(ctx context.Context, e *domain.Event) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE circuit_breaker_events
		SET resolved = 1, resolved_at = ?, resolved_by = ?, note = ?
		WHERE id = ? AND resolved = 0`,
		e.ResolvedAt.UnixNano(), e.ResolvedBy, e.Note, e.ID)
	if err != nil {
		return storeError("resolve event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.Validation(apperror.CodeEventAlreadyResolved, e.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*domain.Event, error) {
	var (
		e                  domain.Event
		trigger, threshold string
		severity           string
		created, resolved  int64
	)
	err := s.Scan(&e.ID, &e.UserID, &e.Reason, &trigger, &threshold, &severity,
		&created, &e.Resolved, &resolved, &e.ResolvedBy, &e.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeError("scan event", err)
	}
	if e.TriggerValue, err = decimal.NewFromString(trigger); err != nil {
		return nil, storeError("decode trigger_value", err)
	}
	if e.ThresholdValue, err = decimal.NewFromString(threshold); err != nil {
		return nil, storeError("decode threshold_value", err)
	}
	e.Severity = domain.Severity(severity)
	e.CreatedAt = time.Unix(0, created).UTC()
	if e.Resolved {
		e.ResolvedAt = time.Unix(0, resolved).UTC()
	}
	return &e, nil
}

func storeError(op string, err error) error {
	return apperror.New(apperror.CodeStoreFailure,
		apperror.WithContext(fmt.Sprintf("risk store: %s", op)), apperror.WithCause(err))
}
