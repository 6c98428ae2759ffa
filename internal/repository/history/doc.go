// Package history implements the ledger of packaged releases.
//
// SQLiteRepository keeps one row per archive in a local SQLite file so a
// build machine can answer "which archive did we ship for this commit".
package history
