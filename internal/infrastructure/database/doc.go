// Package database opens the SQLite file that stores the control event log
// and keeps its schema current.
//
// Schema changes live as NNNN_description.sql files in an fs.FS (normally
// the embedded migrations package). Each applied file is recorded in
// schema_migrations with an xxh3 checksum, so editing a migration after it
// ran is reported instead of silently diverging.
package database
