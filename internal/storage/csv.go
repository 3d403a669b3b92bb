package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
)

// CSVLedger keeps the ledger in a single CSV file. Every write rewrites the
// file through a temp file and a rename, so a day is never half written.
type CSVLedger struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ Ledger = (*CSVLedger)(nil)

func NewCSVLedger(path string, log zerolog.Logger) *CSVLedger {
	return &CSVLedger{path: path, log: log}
}

func (l *CSVLedger) AppendOrReplaceDay(ctx context.Context, date time.Time, rows []models.LedgerRow) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := readRecords(l.path, LedgerHeader)
	if err != nil {
		return err
	}

	date = models.DateOf(date)
	day := date.Format(models.DateLayout)
	kept := make([][]string, 0, len(records)+len(rows))
	replaced := 0
	// Undecodable rows of other days are carried over untouched.
	for _, rec := range records {
		if len(rec) > 0 && strings.TrimSpace(rec[0]) == day {
			replaced++
			continue
		}
		kept = append(kept, rec)
	}
	for _, r := range rows {
		r.Date = date
		kept = append(kept, encodeLedgerRow(r))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(LedgerHeader); err != nil {
		return fmt.Errorf("%w: encode ledger: %v", ErrPersistence, err)
	}
	if err := w.WriteAll(kept); err != nil {
		return fmt.Errorf("%w: encode ledger: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(l.path, buf.Bytes()); err != nil {
		l.log.Error().Err(err).Str("path", l.path).Msg("ledger write failed")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	l.log.Debug().Str("date", day).Int("rows", len(rows)).Int("replaced", replaced).Msg("ledger day written")
	return nil
}

func (l *CSVLedger) ReadAll(ctx context.Context) ([]models.LedgerRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	l.mu.Lock()
	records, err := readRecords(l.path, LedgerHeader)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rows := make([]models.LedgerRow, 0, len(records))
	for i, rec := range records {
		row, err := decodeLedgerRow(rec)
		if err != nil {
			l.log.Warn().Err(err).Str("path", l.path).Int("line", i+2).Msg("skipping malformed ledger row")
			continue
		}
		rows = append(rows, row)
	}
	sortByDate(rows)
	return rows, nil
}

func (l *CSVLedger) ReadTotals(ctx context.Context) ([]models.TotalPoint, error) {
	rows, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return totalsOf(rows), nil
}

// CSVTradeLog appends one CSV line per trade and syncs after each append.
type CSVTradeLog struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ TradeLog = (*CSVTradeLog)(nil)

func NewCSVTradeLog(path string, log zerolog.Logger) *CSVTradeLog {
	return &CSVTradeLog{path: path, log: log}
}

func (t *CSVTradeLog) Append(ctx context.Context, entry models.TradeLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open trade log: %v", ErrPersistence, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat trade log: %v", ErrPersistence, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(TradeLogHeader); err != nil {
			return fmt.Errorf("%w: write trade log: %v", ErrPersistence, err)
		}
	}
	if err := w.Write(encodeTrade(entry)); err != nil {
		return fmt.Errorf("%w: write trade log: %v", ErrPersistence, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: write trade log: %v", ErrPersistence, err)
	}
	if err := f.Sync(); err != nil {
		t.log.Error().Err(err).Str("path", t.path).Msg("trade log sync failed")
		return fmt.Errorf("%w: sync trade log: %v", ErrPersistence, err)
	}
	return nil
}

func (t *CSVTradeLog) ReadAll(ctx context.Context) ([]models.TradeLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	t.mu.Lock()
	records, err := readRecords(t.path, TradeLogHeader)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]models.TradeLogEntry, 0, len(records))
	for i, rec := range records {
		e, err := decodeTrade(rec)
		if err != nil {
			t.log.Warn().Err(err).Str("path", t.path).Int("line", i+2).Msg("skipping malformed trade")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// readRecords returns the raw data records of path without its header line.
// A missing file is an empty table.
func readRecords(path string, header []string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrPersistence, path, err)
	}

	if len(records) > 0 && isHeader(records[0], header) {
		records = records[1:]
	}
	return records, nil
}

func isHeader(rec, header []string) bool {
	return len(rec) > 0 && len(header) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header[0])
}
