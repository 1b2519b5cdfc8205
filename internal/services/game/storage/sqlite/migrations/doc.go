// Package migrations embeds the SQL migration scripts for the game SQLite store.
//
// Scripts are forward-only and applied in file-name order by
// internal/platform/storage/sqlitemigrate.
package migrations
