package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"

	"github.com/guregu/null/v6"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteStore persists the latest fetched snapshot to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logger.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, l logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: l}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	l.Infof("sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refreshes (
			id         TEXT PRIMARY KEY,
			epoch      TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			last_date  TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS ticker_info (
			refresh_id    TEXT NOT NULL REFERENCES refreshes(id),
			ticker        TEXT NOT NULL,
			long_name     TEXT,
			current_price REAL,
			market_cap    REAL,
			tz            TEXT,
			PRIMARY KEY (refresh_id, ticker)
		)`,

		`CREATE TABLE IF NOT EXISTS price_bars (
			refresh_id TEXT NOT NULL REFERENCES refreshes(id),
			ticker     TEXT NOT NULL,
			date       TEXT NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			PRIMARY KEY (refresh_id, ticker, date)
		)`,

		`CREATE TABLE IF NOT EXISTS universe (
			epoch    TEXT PRIMARY KEY,
			tickers  TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

// SaveSnapshot replaces whatever is cached with snap in a single transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, st := range []string{`DELETE FROM price_bars`, `DELETE FROM ticker_info`, `DELETE FROM refreshes`} {
		if _, err := tx.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	var lastDate null.String
	if !snap.LastDate.IsZero() {
		lastDate = null.StringFrom(snap.LastDate.Format(dateLayout))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refreshes (id, epoch, fetched_at, last_date) VALUES (?,?,?,?)`,
		snap.ID, snap.Epoch, snap.FetchedAt.Unix(), lastDate,
	); err != nil {
		return fmt.Errorf("insert refresh: %w", err)
	}

	infoStmt, err := tx.PrepareContext(ctx, `INSERT INTO ticker_info
		(refresh_id, ticker, long_name, current_price, market_cap, tz) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare info: %w", err)
	}
	defer infoStmt.Close()

	barStmt, err := tx.PrepareContext(ctx, `INSERT INTO price_bars
		(refresh_id, ticker, date, open, high, low, close, volume) VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare bars: %w", err)
	}
	defer barStmt.Close()

	for ticker, rec := range snap.Records {
		var tz null.String
		if b, ok := rec.History.Last(); ok {
			tz = null.StringFrom(b.Time.Location().String())
		}
		md := rec.Metadata
		if _, err := infoStmt.ExecContext(ctx, snap.ID, ticker, md.Name, md.CurrentPrice, md.MarketCap, tz); err != nil {
			return fmt.Errorf("insert info %s: %w", ticker, err)
		}
		for _, b := range rec.History {
			if _, err := barStmt.ExecContext(ctx, snap.ID, ticker, b.Time.Format(dateLayout),
				b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("insert bar %s %s: %w", ticker, b.Time.Format(dateLayout), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debugf("saved snapshot %s with %d tickers", snap.ID, len(snap.Records))
	return nil
}

// LatestSnapshot loads the cached snapshot or returns ErrNotFound.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		snap      model.Snapshot
		fetchedAt int64
		lastDate  null.String
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, epoch, fetched_at, last_date FROM refreshes ORDER BY fetched_at DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.Epoch, &fetchedAt, &lastDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh: %w", err)
	}
	snap.FetchedAt = time.Unix(fetchedAt, 0)
	snap.Records = make(map[string]model.TickerRecord)

	locs := make(map[string]*time.Location)
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, long_name, current_price, market_cap, tz FROM ticker_info WHERE refresh_id = ?`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("query info: %w", err)
	}
	for rows.Next() {
		var (
			ticker string
			md     model.TickerMetadata
			tz     null.String
		)
		if err := rows.Scan(&ticker, &md.Name, &md.CurrentPrice, &md.MarketCap, &tz); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan info: %w", err)
		}
		locs[ticker] = loadLocation(tz)
		snap.Records[ticker] = model.TickerRecord{Metadata: md}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate info: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT ticker, date, open, high, low, close, volume FROM price_bars
		 WHERE refresh_id = ? ORDER BY ticker, date`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticker, date string
			b            model.Bar
		)
		if err := rows.Scan(&ticker, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		loc := locs[ticker]
		if loc == nil {
			loc = time.UTC
		}
		if b.Time, err = time.ParseInLocation(dateLayout, date, loc); err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", date, err)
		}
		rec := snap.Records[ticker]
		rec.History = append(rec.History, b)
		snap.Records[ticker] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}

	if lastDate.Valid {
		if d, err := time.Parse(dateLayout, lastDate.String); err == nil {
			snap.LastDate = d
		}
	}
	return &snap, nil
}

// loadLocation falls back to UTC for zones the host cannot resolve. Weekdays of a
// stored calendar date do not depend on the zone.
func loadLocation(tz null.String) *time.Location {
	if !tz.Valid || tz.String == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz.String)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *SQLiteStore) SaveUniverse(ctx context.Context, epoch string, tickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tickers)
	if err != nil {
		return fmt.Errorf("marshal universe: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO universe (epoch, tickers, saved_at) VALUES (?,?,?)
		 ON CONFLICT(epoch) DO UPDATE SET tickers = excluded.tickers, saved_at = excluded.saved_at`,
		epoch, string(data), time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) LoadUniverse(ctx context.Context, epoch string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT tickers FROM universe WHERE epoch = ?`, epoch).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	var tickers []string
	if err := json.Unmarshal([]byte(data), &tickers); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	return tickers, nil
}

// Invalidate drops every cached snapshot and ticker list.
func (s *SQLiteStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range []string{`DELETE FROM price_bars`, `DELETE FROM ticker_info`, `DELETE FROM refreshes`, `DELETE FROM universe`} {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("invalidate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Infof("closing sqlite store")
	return s.db.Close()
}
