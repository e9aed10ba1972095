// Package database provides SQLite connectivity for the assistant link.
//
// The database holds login accounts for the interactive account-linking
// flow. Tokens are deliberately not stored here: the token store keeps its
// own JSON snapshot so it can be reset without touching accounts.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive only: new columns must be NULLABLE or carry a DEFAULT.
package database
