// Package storage provides violation repository backends.
//
// MemoryStorage keeps violations in process and is used by tests and one-shot CLI
// evaluations. SQLiteStorage persists violations in a single SQLite file in WAL
// mode with match data and the rule snapshot stored as JSON columns.
package storage
