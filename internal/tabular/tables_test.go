package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"seconds layout", "2010-12-01 08:26:00", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), false},
		{"minutes layout", "2010-12-01 08:26", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), false},
		{"us layout", "12/1/2010 8:26", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), false},
		{"date only", "2011-01-05", time.Date(2011, 1, 5, 0, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2011-01-05T10:00:00Z", time.Date(2011, 1, 5, 10, 0, 0, 0, time.UTC), false},
		{"excel serial", "40148.5", time.Date(2009, 12, 1, 12, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	cols := config.Default().Columns
	path := filepath.Join(t.TempDir(), "tx.csv")
	txs := []domain.Transaction{
		{CustomerID: "12346", InvoiceID: "489434", Timestamp: time.Date(2009, 12, 1, 7, 45, 0, 0, time.UTC), Revenue: 83.4},
		{CustomerID: "12347", InvoiceID: "489435", Timestamp: time.Date(2009, 12, 2, 9, 5, 30, 0, time.UTC), Revenue: 0.1 + 0.2},
	}

	require.NoError(t, WriteTransactions(path, cols, txs, nil))

	got, err := ReadTransactions(path, cols)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range txs {
		assert.Equal(t, txs[i].CustomerID, got[i].CustomerID)
		assert.Equal(t, txs[i].InvoiceID, got[i].InvoiceID)
		assert.True(t, txs[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, txs[i].Revenue, got[i].Revenue, "floats must round-trip exactly")
	}
}

func TestReadTransactions_Errors(t *testing.T) {
	cols := config.Default().Columns
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing column", "Customer ID,Invoice,InvoiceDate\n1,2,2010-01-01\n", `"Revenue"`},
		{"bad revenue", "Customer ID,Invoice,InvoiceDate,Revenue\n1,2,2010-01-01,abc\n", "not a number"},
		{"bad timestamp", "Customer ID,Invoice,InvoiceDate,Revenue\n1,2,soon,4\n", "InvoiceDate"},
		{"empty customer", "Customer ID,Invoice,InvoiceDate,Revenue\n,2,2010-01-01,4\n", "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := ReadTransactions(path, cols)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadRawTransactions_CSV(t *testing.T) {
	cols := config.Default().Columns
	path := filepath.Join(t.TempDir(), "raw.csv")
	content := "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n" +
		"489434,85048,LIGHTS,12,2009-12-01 07:45:00,6.95,13085.0,United Kingdom\n" +
		"C489449,22087,PAPER,-12,2009-12-01 10:33:00,0.29,16321.0,Australia\n" +
		"489436,21755,,n/a,2009-12-01 09:06:00,5.45,,United Kingdom\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rows, err := ReadRawTransactions(path, "", cols)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "13085.0", rows[0].CustomerID)
	assert.Equal(t, "LIGHTS", rows[0].Description)
	assert.Equal(t, 12.0, rows[0].Quantity)
	assert.Equal(t, "United Kingdom", rows[0].Country)
	assert.True(t, rows[0].HasDescription)

	assert.Equal(t, -12.0, rows[1].Quantity)
	assert.True(t, math.IsNaN(rows[2].Quantity))
	assert.Equal(t, "", rows[2].CustomerID)
}

func TestReadRawTransactions_XLSX(t *testing.T) {
	cols := config.Default().Columns
	path := filepath.Join(t.TempDir(), "raw.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Invoice", "Quantity", "InvoiceDate", "Price", "Customer ID"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"489434", 12, "2009-12-01 07:45:00", 6.95, 13085}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := ReadRawTransactions(path, "", cols)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "489434", rows[0].InvoiceID)
	assert.Equal(t, "13085", rows[0].CustomerID)
	assert.Equal(t, 12.0, rows[0].Quantity)
	assert.Equal(t, 6.95, rows[0].Price)
	assert.False(t, rows[0].HasDescription)

	_, err = ReadRawTransactions(path, "NoSuchSheet", cols)
	assert.ErrorIs(t, err, apperrors.ErrInput)
}

func TestDerivedTablesRoundTrip(t *testing.T) {
	dir := t.TempDir()

	t.Run("rfm", func(t *testing.T) {
		path := filepath.Join(dir, "rfm.csv")
		rows := []domain.CustomerRFM{{CustomerID: "C1", Recency: 1, Frequency: 2, Monetary: 35}}
		require.NoError(t, WriteRFM(path, rows, nil))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "CustomerID,Recency,Frequency,Monetary\nC1,1,2,35\n", string(content))

		got, err := ReadRFM(path)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("scaled", func(t *testing.T) {
		path := filepath.Join(dir, "scaled.csv")
		rows := []domain.ScaledFeatures{{CustomerID: "C1", RLog: 0.69, FLog: 1.09, MLog: 3.58, RScaled: -1, FScaled: 1, MScaled: -0.3333333333333333}}
		require.NoError(t, WriteScaled(path, rows, nil))

		got, err := ReadScaled(path)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("evaluation", func(t *testing.T) {
		path := filepath.Join(dir, "eval.csv")
		results := []domain.EvaluationResult{{K: 2, Distortion: 10.5, CohesionScore: 0.61}, {K: 3, Distortion: 4.25, CohesionScore: 0.72}}
		require.NoError(t, WriteEvaluation(path, results, nil))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "k,inertia,silhouette_score\n2,10.5,0.61\n3,4.25,0.72\n", string(content))

		got, err := ReadEvaluation(path)
		require.NoError(t, err)
		assert.Equal(t, results, got)
	})

	t.Run("assignments", func(t *testing.T) {
		path := filepath.Join(dir, "assign.csv")
		rows := []domain.Assignment{{CustomerID: "C1", ClusterLabel: 0}, {CustomerID: "C2", ClusterLabel: 2}}
		require.NoError(t, WriteAssignments(path, rows, nil))

		got, err := ReadAssignments(path)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("rfm with bad integer", func(t *testing.T) {
		path := filepath.Join(dir, "bad_rfm.csv")
		require.NoError(t, os.WriteFile(path, []byte("CustomerID,Recency,Frequency,Monetary\nC1,1.5,2,3\n"), 0644))

		_, err := ReadRFM(path)
		assert.ErrorIs(t, err, apperrors.ErrInput)
	})
}

func TestWriteProfiles(t *testing.T) {
	dir := t.TempDir()

	profilePath := filepath.Join(dir, "profile.csv")
	require.NoError(t, WriteClusterProfiles(profilePath, []domain.ClusterProfile{
		{Cluster: 1, Customers: 2, RecencyMean: 1.5, RecencyMedian: 1.5, FrequencyMean: 3, FrequencyMedian: 3, MonetaryMean: 100, MonetaryMedian: 100},
	}, nil))
	content, err := os.ReadFile(profilePath)
	require.NoError(t, err)
	assert.Equal(t,
		"Cluster,Customers,Recency_mean,Recency_median,Frequency_mean,Frequency_median,Monetary_mean,Monetary_median\n"+
			"1,2,1.5,1.5,3,3,100,100\n",
		string(content))

	temporalPath := filepath.Join(dir, "temporal.csv")
	require.NoError(t, WriteTemporalProfiles(temporalPath, []domain.TemporalProfile{
		{Cluster: 0, DayOfWeek: "Monday", Hour: 9, MonthPeriod: domain.MonthPeriodEarly, Transactions: 4, UniqueCustomers: 2},
	}, nil))
	content, err = os.ReadFile(temporalPath)
	require.NoError(t, err)
	assert.Equal(t,
		"Cluster,day_of_week,hour,month_period,transactions,unique_customers\n0,Monday,9,Early,4,2\n",
		string(content))
}

func TestWriteSegmentationWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "segments.xlsx")
	results := []domain.EvaluationResult{{K: 2, Distortion: 10.5, CohesionScore: 0.61}}
	profiles := []domain.ClusterProfile{{Cluster: 0, Customers: 3, MonetaryMean: 50}}

	require.NoError(t, WriteSegmentationWorkbook(path, results, profiles, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"evaluation", "profile"}, f.GetSheetList())

	rows, err := f.GetRows("evaluation")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, EvaluationHeaders, rows[0])
	assert.Equal(t, "2", rows[1][0])

	rows, err = f.GetRows("profile")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ProfileHeaders, rows[0])
}

func TestWriteWorkbook_NoSheets(t *testing.T) {
	err := WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
