package migrations

import "embed"

// GameFS holds the entity, placement, status, and ledger schema.
//
//go:embed game/*.sql
var GameFS embed.FS
