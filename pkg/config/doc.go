// Package config loads Sentinel configuration.
//
// Configuration is read from a YAML file, completed with defaults, overridden
// from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("sentinel.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SENTINEL_SECTION_FIELD.
// For example:
//
//   - SENTINEL_WORKFLOW_STORE_BACKEND overrides workflow.store.backend
//   - SENTINEL_WORKFLOW_POSTGRES_DSN overrides workflow.store.postgres.dsn
//   - SENTINEL_ESCALATION_LOCK_BACKEND overrides escalation.lock.backend
//   - SENTINEL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A variable whose value cannot be parsed for its field fails loading with a
// ValidationError naming the variable.
//
// # Validation
//
// Validate collects every problem into a ValidationError instead of stopping at
// the first one. Escalation rules and notification triggers declared in the
// file are compiled during validation, so a bad expression is reported before
// anything starts.
//
// # Example
//
//	rules:
//	  path: ./rules
//	  watch: true
//	workflow:
//	  store:
//	    backend: postgres
//	    postgres:
//	      dsn: postgres://sentinel@db/sentinel?sslmode=disable
//	escalation:
//	  schedule: "*/10 * * * *"
//	  lock:
//	    backend: redis
//	  rules:
//	    - id: stale-medium
//	      when: priority == "medium" && overdueHours > 48
//	      action: notify
//	notifications:
//	  backend: nats
//	  async:
//	    enabled: true
//	telemetry:
//	  logging:
//	    level: debug
//	    format: text
package config
