// Package storage provides workflow.Store implementations.
//
// MemoryStore keeps an arena of workflows indexed by id. SQLiteStore and
// PostgresStore persist each workflow as a JSON document next to a version column;
// updates are compare-and-swap writes on (id, version) that append the transition
// record in the same database transaction.
package storage
