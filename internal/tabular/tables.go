package tabular

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

// TimestampLayout is the layout timestamps are written with
const TimestampLayout = "2006-01-02 15:04:05"

// Headers of the derived tables
var (
	RFMHeaders        = []string{"CustomerID", "Recency", "Frequency", "Monetary"}
	ScaledHeaders     = []string{"CustomerID", "R_log", "F_log", "M_log", "R_scaled", "F_scaled", "M_scaled"}
	EvaluationHeaders = []string{"k", "inertia", "silhouette_score"}
	AssignmentHeaders = []string{"CustomerID", "Cluster"}
	ProfileHeaders    = []string{
		"Cluster", "Customers",
		"Recency_mean", "Recency_median",
		"Frequency_mean", "Frequency_median",
		"Monetary_mean", "Monetary_median",
	}
	TemporalHeaders = []string{"Cluster", "day_of_week", "hour", "month_period", "transactions", "unique_customers"}
)

var timestampLayouts = []string{
	time.RFC3339,
	TimestampLayout,
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the layouts found in retail exports as well as Excel
// date serial numbers. Zone-less values are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		ts, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return ts.Round(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FormatFloat renders v with the fewest digits that parse back to the same value
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadTable loads a CSV file, or an XLSX worksheet when the extension says so
func ReadTable(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return ReadCSV(path)
	}
}

func parseFloatField(op string, t *Table, row, col int, column string) (float64, error) {
	raw := t.Field(row, col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewInputError(op,
			fmt.Sprintf("%s row %d: column %s: %q is not a number", t.Path, row+2, column, raw), err)
	}
	return v, nil
}

func parseIntField(op string, t *Table, row, col int, column string) (int, error) {
	raw := t.Field(row, col)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInputError(op,
			fmt.Sprintf("%s row %d: column %s: %q is not an integer", t.Path, row+2, column, raw), err)
	}
	return v, nil
}

func requireField(op string, t *Table, row, col int, column string) (string, error) {
	v := t.Field(row, col)
	if v == "" {
		return "", apperrors.NewInputError(op,
			fmt.Sprintf("%s row %d: column %s is empty", t.Path, row+2, column), nil)
	}
	return v, nil
}

// ReadRawTransactions loads an unfiltered retail export. Unparsable
// quantities and prices become NaN so the cleaner can count them.
func ReadRawTransactions(path, sheet string, cols config.ColumnsConfig) ([]domain.RawTransaction, error) {
	const op = "tabular.ReadRawTransactions"

	t, err := ReadTable(path, sheet)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, cols.CustomerID, cols.Invoice, cols.Timestamp, cols.Quantity, cols.Price)
	if err != nil {
		return nil, err
	}
	descCol, hasDesc := t.Column(cols.Description)
	stockCol, hasStock := t.Column(cols.StockCode)
	countryCol, hasCountry := t.Column(cols.Country)

	rows := make([]domain.RawTransaction, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		raw := domain.RawTransaction{
			CustomerID:     t.Field(r, idx[0]),
			InvoiceID:      t.Field(r, idx[1]),
			Timestamp:      t.Field(r, idx[2]),
			Quantity:       parseLenient(t.Field(r, idx[3])),
			Price:          parseLenient(t.Field(r, idx[4])),
			HasDescription: hasDesc,
		}
		if hasDesc {
			raw.Description = t.Field(r, descCol)
		}
		if hasStock {
			raw.StockCode = t.Field(r, stockCol)
		}
		if hasCountry {
			raw.Country = t.Field(r, countryCol)
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

func parseLenient(value string) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadTransactions loads the cleaned transaction table
func ReadTransactions(path string, cols config.ColumnsConfig) ([]domain.Transaction, error) {
	const op = "tabular.ReadTransactions"

	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, cols.CustomerID, cols.Invoice, cols.Timestamp, cols.Revenue)
	if err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		customer, err := requireField(op, t, r, idx[0], cols.CustomerID)
		if err != nil {
			return nil, err
		}
		invoice, err := requireField(op, t, r, idx[1], cols.Invoice)
		if err != nil {
			return nil, err
		}
		ts, err := ParseTimestamp(t.Field(r, idx[2]))
		if err != nil {
			return nil, apperrors.NewInputError(op,
				fmt.Sprintf("%s row %d: column %s", path, r+2, cols.Timestamp), err)
		}
		revenue, err := parseFloatField(op, t, r, idx[3], cols.Revenue)
		if err != nil {
			return nil, err
		}
		txs = append(txs, domain.Transaction{
			CustomerID: customer,
			InvoiceID:  invoice,
			Timestamp:  ts,
			Revenue:    revenue,
		})
	}
	return txs, nil
}

// WriteTransactions writes the cleaned transaction table using the configured column names
func WriteTransactions(path string, cols config.ColumnsConfig, txs []domain.Transaction, logger *slog.Logger) error {
	records := make([][]string, len(txs))
	for i, tx := range txs {
		records[i] = []string{
			tx.CustomerID,
			tx.InvoiceID,
			tx.Timestamp.Format(TimestampLayout),
			FormatFloat(tx.Revenue),
		}
	}
	return WriteCSV(path, WriteOptions{
		Headers: []string{cols.CustomerID, cols.Invoice, cols.Timestamp, cols.Revenue},
		Records: records,
	}, logger)
}

// ReadRFM loads an RFM table
func ReadRFM(path string) ([]domain.CustomerRFM, error) {
	const op = "tabular.ReadRFM"

	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, RFMHeaders...)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.CustomerRFM, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		customer, err := requireField(op, t, r, idx[0], RFMHeaders[0])
		if err != nil {
			return nil, err
		}
		recency, err := parseIntField(op, t, r, idx[1], RFMHeaders[1])
		if err != nil {
			return nil, err
		}
		frequency, err := parseIntField(op, t, r, idx[2], RFMHeaders[2])
		if err != nil {
			return nil, err
		}
		monetary, err := parseFloatField(op, t, r, idx[3], RFMHeaders[3])
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.CustomerRFM{
			CustomerID: customer,
			Recency:    recency,
			Frequency:  frequency,
			Monetary:   monetary,
		})
	}
	return rows, nil
}

// WriteRFM writes an RFM table
func WriteRFM(path string, rows []domain.CustomerRFM, logger *slog.Logger) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = []string{
			row.CustomerID,
			strconv.Itoa(row.Recency),
			strconv.Itoa(row.Frequency),
			FormatFloat(row.Monetary),
		}
	}
	return WriteCSV(path, WriteOptions{Headers: RFMHeaders, Records: records}, logger)
}

// ReadScaled loads a scaled feature table
func ReadScaled(path string) ([]domain.ScaledFeatures, error) {
	const op = "tabular.ReadScaled"

	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, ScaledHeaders...)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ScaledFeatures, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		customer, err := requireField(op, t, r, idx[0], ScaledHeaders[0])
		if err != nil {
			return nil, err
		}
		values := make([]float64, 6)
		for c := range values {
			v, err := parseFloatField(op, t, r, idx[c+1], ScaledHeaders[c+1])
			if err != nil {
				return nil, err
			}
			values[c] = v
		}
		rows = append(rows, domain.ScaledFeatures{
			CustomerID: customer,
			RLog:       values[0],
			FLog:       values[1],
			MLog:       values[2],
			RScaled:    values[3],
			FScaled:    values[4],
			MScaled:    values[5],
		})
	}
	return rows, nil
}

// WriteScaled writes a scaled feature table
func WriteScaled(path string, rows []domain.ScaledFeatures, logger *slog.Logger) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = []string{
			row.CustomerID,
			FormatFloat(row.RLog),
			FormatFloat(row.FLog),
			FormatFloat(row.MLog),
			FormatFloat(row.RScaled),
			FormatFloat(row.FScaled),
			FormatFloat(row.MScaled),
		}
	}
	return WriteCSV(path, WriteOptions{Headers: ScaledHeaders, Records: records}, logger)
}

// ReadEvaluation loads a sweep evaluation table
func ReadEvaluation(path string) ([]domain.EvaluationResult, error) {
	const op = "tabular.ReadEvaluation"

	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, EvaluationHeaders...)
	if err != nil {
		return nil, err
	}

	results := make([]domain.EvaluationResult, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		k, err := parseIntField(op, t, r, idx[0], EvaluationHeaders[0])
		if err != nil {
			return nil, err
		}
		inertia, err := parseFloatField(op, t, r, idx[1], EvaluationHeaders[1])
		if err != nil {
			return nil, err
		}
		silhouette, err := parseFloatField(op, t, r, idx[2], EvaluationHeaders[2])
		if err != nil {
			return nil, err
		}
		results = append(results, domain.EvaluationResult{K: k, Distortion: inertia, CohesionScore: silhouette})
	}
	return results, nil
}

// WriteEvaluation writes the sweep evaluation table in sweep order
func WriteEvaluation(path string, results []domain.EvaluationResult, logger *slog.Logger) error {
	records := make([][]string, len(results))
	for i, res := range results {
		records[i] = []string{
			strconv.Itoa(res.K),
			FormatFloat(res.Distortion),
			FormatFloat(res.CohesionScore),
		}
	}
	return WriteCSV(path, WriteOptions{Headers: EvaluationHeaders, Records: records}, logger)
}

// ReadAssignments loads a customer to cluster table
func ReadAssignments(path string) ([]domain.Assignment, error) {
	const op = "tabular.ReadAssignments"

	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx, err := t.RequireColumns(op, AssignmentHeaders...)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Assignment, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		customer, err := requireField(op, t, r, idx[0], AssignmentHeaders[0])
		if err != nil {
			return nil, err
		}
		label, err := parseIntField(op, t, r, idx[1], AssignmentHeaders[1])
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.Assignment{CustomerID: customer, ClusterLabel: label})
	}
	return rows, nil
}

// WriteAssignments writes a customer to cluster table
func WriteAssignments(path string, rows []domain.Assignment, logger *slog.Logger) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = []string{row.CustomerID, strconv.Itoa(row.ClusterLabel)}
	}
	return WriteCSV(path, WriteOptions{Headers: AssignmentHeaders, Records: records}, logger)
}

// WriteClusterProfiles writes the per-cluster RFM summary
func WriteClusterProfiles(path string, profiles []domain.ClusterProfile, logger *slog.Logger) error {
	records := make([][]string, len(profiles))
	for i, p := range profiles {
		records[i] = []string{
			strconv.Itoa(p.Cluster),
			strconv.Itoa(p.Customers),
			FormatFloat(p.RecencyMean),
			FormatFloat(p.RecencyMedian),
			FormatFloat(p.FrequencyMean),
			FormatFloat(p.FrequencyMedian),
			FormatFloat(p.MonetaryMean),
			FormatFloat(p.MonetaryMedian),
		}
	}
	return WriteCSV(path, WriteOptions{Headers: ProfileHeaders, Records: records}, logger)
}

// WriteTemporalProfiles writes the per-cluster activity by time slot
func WriteTemporalProfiles(path string, profiles []domain.TemporalProfile, logger *slog.Logger) error {
	records := make([][]string, len(profiles))
	for i, p := range profiles {
		records[i] = []string{
			strconv.Itoa(p.Cluster),
			p.DayOfWeek,
			strconv.Itoa(p.Hour),
			string(p.MonthPeriod),
			strconv.Itoa(p.Transactions),
			strconv.Itoa(p.UniqueCustomers),
		}
	}
	return WriteCSV(path, WriteOptions{Headers: TemporalHeaders, Records: records}, logger)
}

// WriteSegmentationWorkbook exports the sweep evaluation and the cluster
// profile as the "evaluation" and "profile" sheets of one workbook.
func WriteSegmentationWorkbook(path string, results []domain.EvaluationResult, profiles []domain.ClusterProfile, logger *slog.Logger) error {
	evaluation := Sheet{Name: "evaluation", Headers: EvaluationHeaders}
	for _, res := range results {
		evaluation.Rows = append(evaluation.Rows, []interface{}{res.K, res.Distortion, res.CohesionScore})
	}

	profile := Sheet{Name: "profile", Headers: ProfileHeaders}
	for _, p := range profiles {
		profile.Rows = append(profile.Rows, []interface{}{
			p.Cluster, p.Customers,
			p.RecencyMean, p.RecencyMedian,
			p.FrequencyMean, p.FrequencyMedian,
			p.MonetaryMean, p.MonetaryMedian,
		})
	}

	return WriteWorkbook(path, []Sheet{evaluation, profile}, logger)
}
