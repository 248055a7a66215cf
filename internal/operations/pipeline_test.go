package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/tabular"
)

// writeRawExport writes six frequent high-value customers and six lapsed
// low-value ones, plus rows every cleaning rule rejects.
func writeRawExport(t *testing.T, path string) {
	t.Helper()

	var b strings.Builder
	b.WriteString("Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n")
	invoice := 500000
	line := func(customer string, day, qty int, price float64) {
		invoice++
		fmt.Fprintf(&b, "%d,85123A,WHITE HANGING HEART,%d,2011-12-%02d 10:%02d:00,%.2f,%s,United Kingdom\n",
			invoice, qty, day, invoice%60, price, customer)
	}

	for c := 0; c < 6; c++ {
		customer := fmt.Sprintf("%d.0", 13000+c)
		for inv := 0; inv < 4+c%3; inv++ {
			line(customer, 1+inv+c%2, 20+c*3+inv, 4.5+float64(c))
		}
	}
	for c := 0; c < 6; c++ {
		customer := fmt.Sprintf("%d.0", 17000+c)
		// lapsed customers bought once, in 2010
		invoice++
		fmt.Fprintf(&b, "%d,22423,REGENCY CAKESTAND,%d,2010-12-%02d 09:00:00,%.2f,%s,France\n",
			invoice, 1+c%2, 1+c, 1.25+float64(c)*0.5, customer)
	}

	b.WriteString("C600001,85123A,WHITE HANGING HEART,-3,2011-12-02 10:00:00,4.50,13000.0,United Kingdom\n")
	// 19000 only ever cancelled, so it must not reach the rfm table
	b.WriteString("C600005,22423,REGENCY CAKESTAND,-1,2011-12-03 11:00:00,12.75,19000.0,France\n")
	b.WriteString("600002,85123A,WHITE HANGING HEART,3,2011-12-02 10:00:00,4.50,,United Kingdom\n")
	b.WriteString("600003,85123A,,3,2011-12-02 10:00:00,4.50,13001.0,United Kingdom\n")
	b.WriteString("600004,85123A,WHITE HANGING HEART,3,not a date,4.50,13001.0,United Kingdom\n")

	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		BaseDir:         t.TempDir(),
		RawInput:        "raw/online_retail.csv",
		Transactions:    "interim/transactions.csv",
		RFM:             "processed/rfm_raw.csv",
		Scaled:          "processed/rfm_scaled.csv",
		Evaluation:      "processed/kmeans_evaluation.csv",
		Assignments:     "processed/rfm_clustered.csv",
		ClusterProfile:  "processed/cluster_profile.csv",
		TemporalProfile: "processed/temporal_profile.csv",
		Workbook:        "reports/segmentation.xlsx",
	}
	cfg.Clustering.KMin = 2
	cfg.Clustering.KMax = 4
	cfg.Clustering.FinalK = 2
	cfg.Clustering.Restarts = 4
	cfg.Clustering.Workers = 2

	raw := cfg.Paths.Resolve(cfg.Paths.RawInput)
	require.NoError(t, os.MkdirAll(filepath.Dir(raw), 0755))
	writeRawExport(t, raw)
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_ProfilingDependencies(t *testing.T) {
	tests := []struct {
		name     string
		workbook string
		want     []string
	}{
		{"with workbook", "reports/segmentation.xlsx", []string{StepIDRFM, StepIDClustering, StepIDEvaluation}},
		{"without workbook", "", []string{StepIDRFM, StepIDClustering}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Paths.Workbook = tt.workbook
			manager, err := NewPipeline(cfg, quietLogger(), nil)
			require.NoError(t, err)

			step, err := manager.GetRegistry().Get(StepIDProfiling)
			require.NoError(t, err)
			assert.Equal(t, tt.want, step.GetDependencies())
		})
	}
}

func TestPipeline_FullRun(t *testing.T) {
	cfg := testConfig(t)
	manager, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepIDCleaning, StepIDRFM, StepIDFeatures, StepIDEvaluation, StepIDClustering, StepIDProfiling,
	}, manager.GetRegistry().ListIDs())

	report, err := manager.Execute(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusCompleted, report.Status)
	require.Len(t, report.Steps, 6)
	for _, s := range report.Steps {
		assert.Equal(t, StepStatusCompleted, s.Status, s.ID)
	}

	paths := cfg.Paths
	txs, err := tabular.ReadTransactions(paths.Resolve(paths.Transactions), cfg.Columns)
	require.NoError(t, err)
	assert.NotEmpty(t, txs)
	for _, tx := range txs {
		assert.False(t, strings.HasSuffix(tx.CustomerID, ".0"))
	}

	rows, err := tabular.ReadRFM(paths.Resolve(paths.RFM))
	require.NoError(t, err)
	assert.Len(t, rows, 12)
	for _, row := range rows {
		assert.NotEqual(t, "19000", row.CustomerID)
	}

	results, err := tabular.ReadEvaluation(paths.Resolve(paths.Evaluation))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, 2+i, res.K)
		assert.GreaterOrEqual(t, res.Distortion, 0.0)
		assert.GreaterOrEqual(t, res.CohesionScore, -1.0)
		assert.LessOrEqual(t, res.CohesionScore, 1.0)
	}

	assignments, err := tabular.ReadAssignments(paths.Resolve(paths.Assignments))
	require.NoError(t, err)
	require.Len(t, assignments, 12)
	labels := map[string]int{}
	for _, a := range assignments {
		labels[a.CustomerID] = a.ClusterLabel
	}
	for c := 1; c < 6; c++ {
		assert.Equal(t, labels["13000"], labels[fmt.Sprintf("%d", 13000+c)])
		assert.Equal(t, labels["17000"], labels[fmt.Sprintf("%d", 17000+c)])
	}
	assert.NotEqual(t, labels["13000"], labels["17000"])

	for _, p := range []string{paths.ClusterProfile, paths.TemporalProfile} {
		_, err := os.Stat(paths.Resolve(p))
		assert.NoError(t, err, p)
	}

	f, err := excelize.OpenFile(paths.Resolve(paths.Workbook))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"evaluation", "profile"}, f.GetSheetList())
}

func TestPipeline_SingleStepFromFiles(t *testing.T) {
	cfg := testConfig(t)
	full, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)
	_, err = full.Execute(context.Background(), Request{})
	require.NoError(t, err)

	assignmentsPath := cfg.Paths.Resolve(cfg.Paths.Assignments)
	before, err := os.ReadFile(assignmentsPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(assignmentsPath))

	single, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)
	report, err := single.Execute(context.Background(), Request{Step: StepIDClustering})
	require.NoError(t, err)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, StepIDClustering, report.Steps[0].ID)

	after, err := os.ReadFile(assignmentsPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestPipeline_WithoutRawInput(t *testing.T) {
	cfg := testConfig(t)
	withRaw, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)
	_, err = withRaw.Execute(context.Background(), Request{Step: StepIDCleaning})
	require.NoError(t, err)

	cfg.Paths.RawInput = ""
	manager, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)
	assert.False(t, manager.GetRegistry().Has(StepIDCleaning))

	report, err := manager.Execute(context.Background(), Request{})
	require.NoError(t, err)
	assert.Len(t, report.Steps, 5)
	assert.Equal(t, StepIDRFM, report.Steps[0].ID)
}

func TestPipeline_FailingStep(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clustering.FinalK = 50

	manager, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)

	report, err := manager.Execute(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfig)

	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepIDClustering, step)
	assert.Equal(t, OperationStatusFailed, report.Status)
	assert.Equal(t, StepStatusFailed, statuses(report)[StepIDClustering])
	assert.Equal(t, StepStatusSkipped, statuses(report)[StepIDProfiling])

	_, statErr := os.Stat(cfg.Paths.Resolve(cfg.Paths.Assignments))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_MissingInputFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.RawInput = ""

	manager, err := NewPipeline(cfg, quietLogger(), nil)
	require.NoError(t, err)

	_, err = manager.Execute(context.Background(), Request{Step: StepIDFeatures})
	assert.ErrorIs(t, err, apperrors.ErrInput)
}

func TestNewPipeline_NilConfig(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}
