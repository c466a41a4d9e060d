// Package escalation runs the workflow escalation sweep on a cron schedule.
//
// The Scheduler calls workflow.Engine.CheckEscalations at every tick of the
// configured schedule. When several sentinel processes share one workflow store,
// a Redis-backed Locker makes sure only one of them sweeps per tick; a single
// process can use LocalLocker.
package escalation
