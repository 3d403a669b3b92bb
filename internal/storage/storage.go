package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
)

// ErrPersistence marks a failed write or read of the ledger or trade log.
// A write that returns it has not been committed.
var ErrPersistence = errors.New("persistence error")

// Ledger is the per-date valuation history.
type Ledger interface {
	// AppendOrReplaceDay drops every row already stored for date, then appends rows
	// in order. Rows of other dates keep their position.
	AppendOrReplaceDay(ctx context.Context, date time.Time, rows []models.LedgerRow) error
	// ReadAll returns every decodable row, ordered by date.
	ReadAll(ctx context.Context) ([]models.LedgerRow, error)
	// ReadTotals returns one TOTAL point per date, ordered by date.
	ReadTotals(ctx context.Context) ([]models.TotalPoint, error)
}

// TradeLog is the append-only record of executed trades.
type TradeLog interface {
	Append(ctx context.Context, entry models.TradeLogEntry) error
	ReadAll(ctx context.Context) ([]models.TradeLogEntry, error)
}

// Backend names.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Options selects and locates the backend.
type Options struct {
	Backend      string
	LedgerPath   string // csv
	TradeLogPath string // csv
	SQLitePath   string // sqlite
}

// Store bundles the two persisted tables.
type Store struct {
	Ledger Ledger
	Trades TradeLog
	close  func() error
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open returns the configured backend, creating parent directories as needed.
func Open(opts Options, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "storage").Str("backend", opts.Backend).Logger()

	switch strings.ToLower(opts.Backend) {
	case "", BackendCSV:
		for _, p := range []string{opts.LedgerPath, opts.TradeLogPath} {
			if err := ensureDir(p); err != nil {
				return nil, err
			}
		}
		return &Store{
			Ledger: NewCSVLedger(opts.LedgerPath, log),
			Trades: NewCSVTradeLog(opts.TradeLogPath, log),
		}, nil

	case BackendSQLite:
		if err := ensureDir(opts.SQLitePath); err != nil {
			return nil, err
		}
		db, err := OpenSQLite(opts.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return &Store{
			Ledger: db.Ledger(),
			Trades: db.TradeLog(),
			close:  db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}

func ensureDir(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrPersistence)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistence, dir, err)
	}
	return nil
}

// writeFileAtomic writes data next to path, syncs it, then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("write temp file: %w", err)
	}

	// The rename must never expose a file whose bytes are not yet on disk.
	if err := f.Sync(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("sync temp file: %w", err)
	}

	// Windows refuses to rename an open file.
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// sortByDate orders rows by date, keeping file order within a date.
func sortByDate(rows []models.LedgerRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
}

// totalsOf extracts the equity curve. When a date carries several TOTAL rows
// the last one wins.
func totalsOf(rows []models.LedgerRow) []models.TotalPoint {
	var out []models.TotalPoint
	for _, r := range rows {
		p, ok := r.Point()
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
