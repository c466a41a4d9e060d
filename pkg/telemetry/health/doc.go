// Package health serves liveness and readiness probes for `sentinel run`.
//
// Readiness checks are registered per backing component. The SQL stores, the
// Redis escalation lock and the NATS publisher all implement Pinger:
//
//	checker := health.New(0)
//	checker.RegisterCheck("workflow_store", health.PingCheck(store))
//	health.Mount(mux, checker, version, commit, buildTime)
package health
