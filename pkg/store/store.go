package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/scan"
)

// Store persists per-epoch offense reports in a single sqlite file so the
// watcher can serve past scans without refetching them.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS offenses (
	epoch   INTEGER NOT NULL,
	address TEXT    NOT NULL,
	count   INTEGER NOT NULL,
	PRIMARY KEY (epoch, address)
);
CREATE TABLE IF NOT EXISTS unresolved_flips (
	epoch INTEGER NOT NULL,
	cid   TEXT    NOT NULL,
	PRIMARY KEY (epoch, cid)
);
CREATE TABLE IF NOT EXISTS scanned_epochs (
	epoch      INTEGER PRIMARY KEY,
	scanned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open opens (or creates) the store at path. Use ":memory:" in tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// sqlite serializes writes anyway, and a single connection keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveEpochReport replaces the stored report for the report's epoch.
func (s *Store) SaveEpochReport(ctx context.Context, report *scan.EpochReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM offenses WHERE epoch = ?`, report.Epoch); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unresolved_flips WHERE epoch = ?`, report.Epoch); err != nil {
		return err
	}
	for _, e := range report.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO offenses (epoch, address, count) VALUES (?, ?, ?)`,
			report.Epoch, e.Address, e.Count); err != nil {
			return err
		}
	}
	for _, cid := range report.UnresolvedFlips {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unresolved_flips (epoch, cid) VALUES (?, ?)`,
			report.Epoch, cid); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scanned_epochs (epoch) VALUES (?)
		 ON CONFLICT(epoch) DO UPDATE SET scanned_at = CURRENT_TIMESTAMP`,
		report.Epoch); err != nil {
		return err
	}
	return tx.Commit()
}

// EpochReport loads the stored report for one epoch. The second return value
// reports whether that epoch has ever been scanned.
func (s *Store) EpochReport(ctx context.Context, epoch uint64) (*scan.EpochReport, bool, error) {
	var seen int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scanned_epochs WHERE epoch = ?`, epoch).Scan(&seen)
	if err != nil {
		return nil, false, err
	}
	if seen == 0 {
		return nil, false, nil
	}

	report := &scan.EpochReport{
		Epoch:           epoch,
		Entries:         []scan.OffenseRecord{},
		UnresolvedFlips: []string{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, count FROM offenses WHERE epoch = ? ORDER BY count DESC, address ASC`, epoch)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec scan.OffenseRecord
		if err := rows.Scan(&rec.Address, &rec.Count); err != nil {
			return nil, false, err
		}
		rec.RepeatOffender = rec.Count > 1
		report.Entries = append(report.Entries, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	cids, err := s.db.QueryContext(ctx,
		`SELECT cid FROM unresolved_flips WHERE epoch = ? ORDER BY cid ASC`, epoch)
	if err != nil {
		return nil, false, err
	}
	defer cids.Close()
	for cids.Next() {
		var cid string
		if err := cids.Scan(&cid); err != nil {
			return nil, false, err
		}
		report.UnresolvedFlips = append(report.UnresolvedFlips, cid)
	}
	return report, true, cids.Err()
}

// ScannedEpochs lists every epoch a report is stored for, ascending.
func (s *Store) ScannedEpochs(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT epoch FROM scanned_epochs ORDER BY epoch ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var e uint64
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WindowReport reassembles a window report from stored epochs. Epochs inside
// the window that were never scanned are reported as skipped.
func (s *Store) WindowReport(ctx context.Context, start, end uint64) (*scan.WindowReport, error) {
	if start > end {
		return nil, fmt.Errorf("invalid window: start %d is after end %d", start, end)
	}
	report := &scan.WindowReport{
		StartEpoch:    start,
		EndEpoch:      end,
		Reports:       []scan.EpochReport{},
		SkippedEpochs: []uint64{},
	}
	for epoch := start; epoch <= end; epoch++ {
		er, ok, err := s.EpochReport(ctx, epoch)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.SkippedEpochs = append(report.SkippedEpochs, epoch)
			continue
		}
		report.Reports = append(report.Reports, *er)
	}
	report.Totals = scan.SumCounts(report.Reports)
	return report, nil
}
