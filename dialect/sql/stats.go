package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/wherekit/dialect"
)

// MaterializeStats holds nested query materialization statistics.
type MaterializeStats struct {
	// Materializations is the number of nested queries executed eagerly.
	Materializations atomic.Int64
	// Rows is the total number of values read.
	Rows atomic.Int64
	// TotalDuration is the total time spent materializing.
	TotalDuration atomic.Int64 // nanoseconds
	// Slow is the count of materializations exceeding the slow threshold.
	Slow atomic.Int64
	// Errors is the count of failed materializations.
	Errors atomic.Int64
}

// Snapshot returns a snapshot of the current statistics.
func (s *MaterializeStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Materializations: s.Materializations.Load(),
		Rows:             s.Rows.Load(),
		TotalDuration:    time.Duration(s.TotalDuration.Load()),
		Slow:             s.Slow.Load(),
		Errors:           s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *MaterializeStats) Reset() {
	s.Materializations.Store(0)
	s.Rows.Store(0)
	s.TotalDuration.Store(0)
	s.Slow.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of materialization statistics.
type StatsSnapshot struct {
	Materializations int64
	Rows             int64
	TotalDuration    time.Duration
	Slow             int64
	Errors           int64
}

// AvgDuration returns the average materialization duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	if s.Materializations == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Materializations)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"materializations=%d rows=%d duration=%s avg=%s slow=%d errors=%d",
		s.Materializations, s.Rows, s.TotalDuration, s.AvgDuration(), s.Slow, s.Errors,
	)
}

// DebugDriver wraps a Driver and logs every statement it runs, including
// the nested queries executed by materialization.
type DebugDriver struct {
	*Driver
	logger *slog.Logger
}

// NewDebugDriver wraps a Driver with debug logging. A nil logger uses
// slog.Default().
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	q := b.Select("id").From("users").Via(sql.NewDebugDriver(drv, logger))
func NewDebugDriver(drv *Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query executes a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, logger: d.logger}, nil
}

// DebugTx wraps a transaction with debug logging.
type DebugTx struct {
	dialect.Tx
	logger *slog.Logger
}

// Query executes a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec executes a statement within the transaction and logs it.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.logger.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.logger.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
