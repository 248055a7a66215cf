package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.RFM.SnapshotOffsetDays)
	assert.Equal(t, 2, cfg.Clustering.KMin)
	assert.Equal(t, 8, cfg.Clustering.KMax)
	assert.Equal(t, 3, cfg.Clustering.FinalK)
	assert.Equal(t, int64(42), cfg.Clustering.Seed)
	assert.Equal(t, 20, cfg.Clustering.Restarts)
	assert.Equal(t, "Customer ID", cfg.Columns.CustomerID)
	assert.Equal(t, "InvoiceDate", cfg.Columns.Timestamp)
	assert.Equal(t, "C", cfg.Cleaning.CancellationPrefix)
	assert.Empty(t, cfg.Paths.RawInput)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		env         map[string]string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "file overrides defaults",
			yaml: `
clustering:
  k_min: 3
  k_max: 5
  final_k: 4
rfm:
  snapshot_offset_days: 2
columns:
  customer_id: CustomerID
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Clustering.KMin)
				assert.Equal(t, 5, cfg.Clustering.KMax)
				assert.Equal(t, 4, cfg.Clustering.FinalK)
				assert.Equal(t, 2, cfg.RFM.SnapshotOffsetDays)
				assert.Equal(t, "CustomerID", cfg.Columns.CustomerID)
				// untouched keys keep defaults
				assert.Equal(t, int64(42), cfg.Clustering.Seed)
				assert.Equal(t, "Invoice", cfg.Columns.Invoice)
			},
		},
		{
			name: "env overrides file",
			yaml: `
clustering:
  seed: 7
`,
			env: map[string]string{
				"RFMSEG_CLUSTERING_SEED":     "11",
				"RFMSEG_CLUSTERING_RESTARTS": "5",
				"RFMSEG_LOGGING_LEVEL":       "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, int64(11), cfg.Clustering.Seed)
				assert.Equal(t, 5, cfg.Clustering.Restarts)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "k range inverted",
			yaml: `
clustering:
  k_min: 6
  k_max: 3
`,
			wantErr: true,
		},
		{
			name: "negative snapshot offset",
			env: map[string]string{
				"RFMSEG_RFM_SNAPSHOT_OFFSET_DAYS": "-1",
			},
			wantErr: true,
		},
		{
			name: "unknown log level",
			env: map[string]string{
				"RFMSEG_LOGGING_LEVEL": "verbose",
			},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "clustering: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "rfmseg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"k_min below two", func(c *Config) { c.Clustering.KMin = 1 }, true},
		{"final k below two", func(c *Config) { c.Clustering.FinalK = 1 }, true},
		{"zero restarts", func(c *Config) { c.Clustering.Restarts = 0 }, true},
		{"missing rfm path", func(c *Config) { c.Paths.RFM = "" }, true},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, true},
		{"console output without path", func(c *Config) { c.Logging.FilePath = "" }, false},
		{"bad trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "otlp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathsConfig_Resolve(t *testing.T) {
	p := PathsConfig{BaseDir: "/srv/rfm"}

	assert.Equal(t, filepath.Join("/srv/rfm", "data/x.csv"), p.Resolve("data/x.csv"))
	assert.Equal(t, "/abs/x.csv", p.Resolve("/abs/x.csv"))
	assert.Equal(t, "", p.Resolve(""))
	assert.Equal(t, "rel.csv", PathsConfig{}.Resolve("rel.csv"))
}

func TestClusteringConfig_WorkerCount(t *testing.T) {
	assert.Equal(t, 3, ClusteringConfig{Workers: 3}.WorkerCount())
	assert.Greater(t, ClusteringConfig{}.WorkerCount(), 0)
}
