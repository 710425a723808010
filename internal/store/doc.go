// Package store provides SQLite-backed durable storage for incoq compile
// runs.
//
// The store is an append-only log with:
//   - Runs: one record per compilation, keyed by a UUIDv7 run id
//   - Run queries: the parameters, demand parameters and implementation
//     chosen for every query of a run
//   - Executions: engine runs of a compiled program, with their output
//   - Execution events: the traced relation and map updates of an execution
//
// # Logical Time
//
// All ordering uses seq INTEGER columns assigned by the store, never
// timestamps. Every listing includes ORDER BY seq ASC, id ASC COLLATE
// BINARY so results are identical across processes.
//
// # Determinism
//
// The same input must compile to byte-identical output. CheckDeterminism
// compares a fresh output fingerprint with every earlier run of the same
// input fingerprint. Fingerprints are computed by incast.FingerprintProgram
// over RFC 8785 canonical JSON with SHA-256 and domain separation.
//
// # Connections
//
// Open passes the SQLite settings in the go-sqlite3 DSN, so every
// connection runs in WAL mode with synchronous=NORMAL, a five second busy
// timeout and foreign keys enforced. The schema version lives in
// PRAGMA user_version; a log stamped with a newer version is refused.
package store
