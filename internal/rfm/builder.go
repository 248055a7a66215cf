// Package rfm derives per-customer Recency, Frequency and Monetary metrics
// from a cleaned transaction table.
package rfm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

const day = 24 * time.Hour

var validate = validator.New(validator.WithRequiredStructEnabled())

// Builder computes the RFM table of a run
type Builder struct {
	offsetDays int
	logger     *slog.Logger
}

// NewBuilder creates a builder whose snapshot lies offsetDays after the
// day of the latest transaction.
func NewBuilder(offsetDays int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{offsetDays: offsetDays, logger: logger}
}

type accumulator struct {
	last     time.Time
	invoices map[string]struct{}
	monetary float64
}

// Build aggregates txs into one row per customer, sorted by customer ID.
// Customers without transactions never appear.
func (b *Builder) Build(ctx context.Context, txs []domain.Transaction) (*domain.RFMTable, error) {
	const op = "rfm.Build"

	if len(txs) == 0 {
		return nil, apperrors.NewInputError(op, "transaction table is empty", nil)
	}
	if b.offsetDays < 0 {
		return nil, apperrors.NewConfigError(op, fmt.Sprintf("snapshot offset must be >= 0, got %d", b.offsetDays), nil)
	}

	customers := make(map[string]*accumulator)
	var maxTS time.Time
	for i, tx := range txs {
		if err := validate.Struct(tx); err != nil {
			return nil, apperrors.NewValidationError(op, fmt.Sprintf("transaction %d: %v", i, err))
		}
		if tx.Timestamp.After(maxTS) {
			maxTS = tx.Timestamp
		}

		acc, ok := customers[tx.CustomerID]
		if !ok {
			acc = &accumulator{invoices: make(map[string]struct{})}
			customers[tx.CustomerID] = acc
		}
		if tx.Timestamp.After(acc.last) {
			acc.last = tx.Timestamp
		}
		acc.invoices[tx.InvoiceID] = struct{}{}
		acc.monetary += tx.Revenue
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError(op, err)
	}

	snapshot := SnapshotDate(maxTS, b.offsetDays)

	ids := make([]string, 0, len(customers))
	for id := range customers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]domain.CustomerRFM, 0, len(ids))
	for _, id := range ids {
		acc := customers[id]
		row := domain.CustomerRFM{
			CustomerID: id,
			Recency:    wholeDays(snapshot.Sub(acc.last)),
			Frequency:  len(acc.invoices),
			Monetary:   acc.monetary,
		}
		if row.Recency < 0 {
			return nil, apperrors.NewValidationError(op, fmt.Sprintf(
				"customer %s: negative recency %d, last transaction %s is after snapshot %s",
				id, row.Recency, acc.last.Format(time.RFC3339), snapshot.Format(time.RFC3339)))
		}
		if err := validate.Struct(row); err != nil {
			return nil, apperrors.NewValidationError(op, fmt.Sprintf("customer %s: %v", id, err))
		}
		rows = append(rows, row)
	}

	b.logger.InfoContext(ctx, "RFM table built",
		slog.Int("transactions", len(txs)),
		slog.Int("customers", len(rows)),
		slog.Time("max_timestamp", maxTS),
		slog.Time("snapshot_date", snapshot))

	return &domain.RFMTable{SnapshotDate: snapshot, Rows: rows}, nil
}

// SnapshotDate truncates ts to midnight in its own location and adds offsetDays
func SnapshotDate(ts time.Time, offsetDays int) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d+offsetDays, 0, 0, 0, 0, ts.Location())
}

// wholeDays floors a duration to whole days, rounding towards negative infinity
func wholeDays(d time.Duration) int {
	days := d / day
	if d%day < 0 {
		days--
	}
	return int(days)
}
