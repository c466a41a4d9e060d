// Package workflow implements the remediation and approval lifecycle of violations.
//
// A Workflow is created from an ApprovalChain template, one Step per approval level,
// and then moves through a fixed state machine:
//
//	pending     -> in_review, cancelled
//	in_review   -> approved, rejected, escalated, cancelled
//	approved    -> in_progress, resolved
//	rejected    -> pending, cancelled
//	in_progress -> resolved, escalated, cancelled
//	escalated   -> in_review, approved, rejected, cancelled
//
// Every successful Transition appends one audit record. Approvals accumulate on the
// current step; the workflow only reaches approved when the last step completes.
//
// CheckEscalations is the SLA sweep. It applies EscalationRules to workflows whose
// current step is overdue and stamps the step so it is never escalated twice.
//
// The Engine persists through a Store with optimistic versioning and reports
// lifecycle changes and notifications to a Publisher.
package workflow
