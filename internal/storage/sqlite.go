package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	date          TEXT NOT NULL,
	ticker        TEXT NOT NULL,
	shares        TEXT,
	buy_price     TEXT,
	cost_basis    TEXT,
	stop_loss     TEXT,
	current_price TEXT,
	total_value   TEXT,
	pnl           TEXT,
	action        TEXT NOT NULL DEFAULT '',
	cash_balance  TEXT,
	total_equity  TEXT
);
CREATE INDEX IF NOT EXISTS idx_ledger_date ON ledger(date);

CREATE TABLE IF NOT EXISTS trades (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	date   TEXT NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	shares TEXT NOT NULL,
	price  TEXT NOT NULL,
	pnl    TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);
`

// SQLiteDB holds the ledger and trade tables in one database file.
// Decimals are stored as TEXT to keep their exact representation; NULL means blank.
type SQLiteDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string, log zerolog.Logger) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	// One writer at a time keeps the day replacement serial.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrPersistence, err)
	}
	return &SQLiteDB{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ledger() *SQLiteLedger     { return &SQLiteLedger{s} }
func (s *SQLiteDB) TradeLog() *SQLiteTradeLog { return &SQLiteTradeLog{s} }

// SQLiteLedger implements Ledger; a day is replaced inside one transaction.
type SQLiteLedger struct{ s *SQLiteDB }

var _ Ledger = (*SQLiteLedger)(nil)

func (l *SQLiteLedger) AppendOrReplaceDay(ctx context.Context, date time.Time, rows []models.LedgerRow) error {
	day := models.DateOf(date).Format(models.DateLayout)

	tx, err := l.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger WHERE date = ?`, day); err != nil {
		return fmt.Errorf("%w: delete day: %v", ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger
		(date, ticker, shares, buy_price, cost_basis, stop_loss, current_price, total_value, pnl, action, cash_balance, total_equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, day, r.Ticker,
			nullText(r.Shares), nullText(r.BuyPrice), nullText(r.CostBasis), nullText(r.StopLoss),
			nullText(r.CurrentPrice), nullText(r.TotalValue), nullText(r.PnL),
			string(r.Action), nullText(r.CashBalance), nullText(r.TotalEquity))
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrPersistence, r.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		l.s.log.Error().Err(err).Str("date", day).Msg("ledger commit failed")
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return nil
}

func (l *SQLiteLedger) ReadAll(ctx context.Context) ([]models.LedgerRow, error) {
	rows, err := l.s.db.QueryContext(ctx, `SELECT date, ticker, shares, buy_price, cost_basis, stop_loss,
		current_price, total_value, pnl, action, cash_balance, total_equity
		FROM ledger ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query ledger: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []models.LedgerRow
	for rows.Next() {
		var (
			date, ticker, action string
			cols                 [9]sql.NullString
		)
		if err := rows.Scan(&date, &ticker, &cols[0], &cols[1], &cols[2], &cols[3],
			&cols[4], &cols[5], &cols[6], &action, &cols[7], &cols[8]); err != nil {
			return nil, fmt.Errorf("%w: scan ledger: %v", ErrPersistence, err)
		}

		rec := []string{date, ticker}
		for i, c := range cols {
			if i == 7 {
				rec = append(rec, action)
			}
			rec = append(rec, c.String)
		}
		row, err := decodeLedgerRow(rec)
		if err != nil {
			l.s.log.Warn().Err(err).Str("date", date).Str("ticker", ticker).Msg("skipping malformed ledger row")
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read ledger: %v", ErrPersistence, err)
	}
	return out, nil
}

func (l *SQLiteLedger) ReadTotals(ctx context.Context) ([]models.TotalPoint, error) {
	rows, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return totalsOf(rows), nil
}

// SQLiteTradeLog implements TradeLog.
type SQLiteTradeLog struct{ s *SQLiteDB }

var _ TradeLog = (*SQLiteTradeLog)(nil)

func (t *SQLiteTradeLog) Append(ctx context.Context, e models.TradeLogEntry) error {
	_, err := t.s.db.ExecContext(ctx,
		`INSERT INTO trades (date, ticker, action, shares, price, pnl, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Date.Format(models.DateLayout), e.Ticker, string(e.Action),
		e.Shares.String(), e.Price.String(), e.PnL.String(), e.Reason)
	if err != nil {
		t.s.log.Error().Err(err).Str("ticker", e.Ticker).Msg("trade insert failed")
		return fmt.Errorf("%w: insert trade: %v", ErrPersistence, err)
	}
	return nil
}

func (t *SQLiteTradeLog) ReadAll(ctx context.Context) ([]models.TradeLogEntry, error) {
	rows, err := t.s.db.QueryContext(ctx,
		`SELECT date, ticker, action, shares, price, pnl, reason FROM trades ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query trades: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []models.TradeLogEntry
	for rows.Next() {
		rec := make([]string, len(TradeLogHeader))
		if err := rows.Scan(&rec[0], &rec[1], &rec[2], &rec[3], &rec[4], &rec[5], &rec[6]); err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", ErrPersistence, err)
		}
		e, err := decodeTrade(rec)
		if err != nil {
			t.s.log.Warn().Err(err).Msg("skipping malformed trade")
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read trades: %v", ErrPersistence, err)
	}
	return out, nil
}

func nullText(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}
