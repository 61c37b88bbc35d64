// Package config provides configuration management for the prospects service.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PROSPECTS_SECTION_FIELD.
// For example:
//
//   - PROSPECTS_RETENTION_MAX_AGE_MINUTES overrides retention.max_age_minutes
//   - PROSPECTS_STORAGE_BACKEND overrides storage.backend
//   - PROSPECTS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is read first and never overrides
// variables already present in the process environment.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (see defaults.go)
//  2. YAML file values
//  3. Environment variables
//
// Zero values in the file are treated as unset, so retention.max_age_minutes
// cannot be set to 0 from YAML; use the environment override for that.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "/var/lib/prospects/prospects.db"
//
//	retention:
//	  max_batch_delete: 25
//	  max_age_minutes: 1440
//	  schedule: "*/30 * * * *"
//	  partitions:
//	    - surface_guid: "NEW_TAB_EN_US"
//	      candidate_types: ["time-spent", "syndicated-new"]
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Hot Reload
//
// Watcher observes the configuration file and hands each valid reload to a
// callback. Only retention settings take effect without a restart.
package config
