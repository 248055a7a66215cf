// Package config provides centralized configuration management for rfmseg.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the pipeline.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command line flags (applied by cmd/rfmseg, highest priority)
//	2. Environment variables
//	3. Configuration file (YAML)
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RFMSEG_<SECTION>_<FIELD>:
//
//	RFMSEG_LOGGING_LEVEL=debug
//	RFMSEG_PATHS_TRANSACTIONS=data/interim/online_retail_clean.csv
//	RFMSEG_RFM_SNAPSHOT_OFFSET_DAYS=1
//	RFMSEG_CLUSTERING_K_MIN=2
//	RFMSEG_CLUSTERING_FINAL_K=3
//	RFMSEG_CLUSTERING_SEED=42
//
// # Validation
//
// Struct tags checked by go-playground/validator guard value ranges
// (k_min <= k_max, restarts >= 1, known log levels). A configuration that
// fails validation is a fatal error; there is no fallback to defaults.
//
// # Usage
//
//	cfg, err := config.Load("configs/rfmseg.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Testing
//
// Use config.Default() for a configuration with the documented defaults that
// does not touch the environment or the file system.
package config
