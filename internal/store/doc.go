// Package store provides durable storage for the writer engine.
//
// All entities live in a single SQLite database: projects and their
// settings, chapters with segments, reviews and immutable text versions,
// runs with their ordered steps, and the append-only LLM call ledger.
//
// The store exposes two access levels:
//
//   - Read methods on Store run outside any transaction and serve the
//     HTTP query surface.
//   - Mutations go through Store.WithTx, which scopes a *Tx to one
//     all-or-nothing SQLite transaction. The engine performs each
//     drive-to-stable pass inside exactly one such transaction, so a
//     ledger entry is never observable without its step outcome and
//     version numbers can never collide.
//
// The connection pool is limited to a single connection (SQLite allows one
// writer), which also serializes concurrent mutating passes against the
// same run.
package store
