// Package cleaning filters a raw retail export down to the transaction table
// the RFM builder consumes.
package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/stats"
	"rfmseg/internal/tabular"
	"rfmseg/pkg/contracts/domain"
)

var trailingZero = regexp.MustCompile(`\.0$`)

// Cleaner applies the cleaning rules in a fixed order
type Cleaner struct {
	cfg    config.CleaningConfig
	logger *slog.Logger
}

// NewCleaner creates a new cleaner
func NewCleaner(cfg config.CleaningConfig, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{cfg: cfg, logger: logger}
}

type cleanRow struct {
	raw domain.RawTransaction
	ts  time.Time
}

// Clean drops unusable rows, derives revenue as quantity times price, removes
// exact duplicates and sorts by customer then timestamp. Every dropped row is
// counted once, under the first rule that rejected it.
func (c *Cleaner) Clean(ctx context.Context, raw []domain.RawTransaction) ([]domain.Transaction, domain.CleaningReport, error) {
	const op = "cleaning.Clean"

	report := domain.CleaningReport{InputRows: len(raw)}
	if len(raw) == 0 {
		return nil, report, apperrors.NewInputError(op, "raw transaction table is empty", nil)
	}

	kept := make([]cleanRow, 0, len(raw))
	for _, row := range raw {
		if strings.TrimSpace(row.CustomerID) == "" {
			report.DroppedNullCustomer++
			continue
		}
		ts, err := tabular.ParseTimestamp(row.Timestamp)
		if err != nil {
			report.DroppedBadTimestamp++
			continue
		}
		row.CustomerID = NormalizeCustomerID(row.CustomerID)
		row.InvoiceID = strings.TrimSpace(row.InvoiceID)

		if c.cfg.CancellationPrefix != "" && strings.HasPrefix(row.InvoiceID, c.cfg.CancellationPrefix) {
			report.DroppedCancelled++
			continue
		}
		// NaN compares false, so unparsable values are dropped here too
		if !(row.Quantity > 0) {
			report.DroppedBadQuantity++
			continue
		}
		if !(row.Price > 0) {
			report.DroppedBadPrice++
			continue
		}
		if c.cfg.DropNullDescription && row.HasDescription && strings.TrimSpace(row.Description) == "" {
			report.DroppedNullDescription++
			continue
		}
		kept = append(kept, cleanRow{raw: row, ts: ts})
	}

	if err := ctx.Err(); err != nil {
		return nil, report, apperrors.NewCancelledError(op, err)
	}

	seen := make(map[string]struct{}, len(kept))
	unique := kept[:0]
	for _, row := range kept {
		key := dedupeKey(row)
		if _, dup := seen[key]; dup {
			report.DroppedDuplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].raw.CustomerID != unique[j].raw.CustomerID {
			return unique[i].raw.CustomerID < unique[j].raw.CustomerID
		}
		return unique[i].ts.Before(unique[j].ts)
	})

	txs := make([]domain.Transaction, len(unique))
	for i, row := range unique {
		txs[i] = domain.Transaction{
			CustomerID: row.raw.CustomerID,
			InvoiceID:  row.raw.InvoiceID,
			Timestamp:  row.ts,
			Revenue:    row.raw.Quantity * row.raw.Price,
		}
	}
	report.OutputRows = len(txs)

	c.logReport(ctx, report, txs)

	if len(txs) == 0 {
		return nil, report, apperrors.NewValidationError(op, "no transactions survived cleaning")
	}
	return txs, report, nil
}

// NormalizeCustomerID strips whitespace and the ".0" suffix left by float-typed exports
func NormalizeCustomerID(id string) string {
	return strings.TrimSpace(trailingZero.ReplaceAllString(strings.TrimSpace(id), ""))
}

func dedupeKey(row cleanRow) string {
	r := row.raw
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s\x1f%v\x1f%d\x1f%v\x1f%s",
		r.InvoiceID, r.StockCode, r.Description, r.CustomerID,
		r.Quantity, row.ts.UnixNano(), r.Price, r.Country)
}

func (c *Cleaner) logReport(ctx context.Context, report domain.CleaningReport, txs []domain.Transaction) {
	c.logger.InfoContext(ctx, "Cleaning complete",
		slog.Int("input_rows", report.InputRows),
		slog.Int("output_rows", report.OutputRows),
		slog.Int("dropped_null_customer", report.DroppedNullCustomer),
		slog.Int("dropped_bad_timestamp", report.DroppedBadTimestamp),
		slog.Int("dropped_cancelled", report.DroppedCancelled),
		slog.Int("dropped_bad_quantity", report.DroppedBadQuantity),
		slog.Int("dropped_bad_price", report.DroppedBadPrice),
		slog.Int("dropped_null_description", report.DroppedNullDescription),
		slog.Int("dropped_duplicates", report.DroppedDuplicates))

	if len(txs) == 0 {
		return
	}

	customers := make(map[string]struct{})
	invoices := make(map[string]struct{})
	revenue := make([]float64, len(txs))
	first, last := txs[0].Timestamp, txs[0].Timestamp
	for i, tx := range txs {
		customers[tx.CustomerID] = struct{}{}
		invoices[tx.InvoiceID] = struct{}{}
		revenue[i] = tx.Revenue
		if tx.Timestamp.Before(first) {
			first = tx.Timestamp
		}
		if tx.Timestamp.After(last) {
			last = tx.Timestamp
		}
	}
	summary := stats.Describe(revenue)
	c.logger.InfoContext(ctx, "Cleaned data quality",
		slog.Time("first_timestamp", first),
		slog.Time("last_timestamp", last),
		slog.Int("unique_customers", len(customers)),
		slog.Int("unique_invoices", len(invoices)),
		slog.Float64("revenue_mean", summary.Mean),
		slog.Float64("revenue_p50", summary.P50),
		slog.Float64("revenue_p99", summary.P99),
		slog.Float64("revenue_max", summary.Max))
}
