// Package logging builds the process logger.
//
// New returns a *slog.Logger whose handler redacts PII from attribute values
// and adds correlation fields carried on the context: tenant, workflow, rule,
// actor and the active OpenTelemetry trace and span ids.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithWorkflowID(ctx, wf.ID)
//	logger.InfoContext(ctx, "workflow approved", "approver", "alice@example.com")
//	// {"msg":"workflow approved","approver":"a***@example.com","workflow_id":"..."}
//
// Attributes whose key names a secret (password, token, dsn, ...) are masked
// entirely; other string values are scanned with the redaction patterns.
package logging
