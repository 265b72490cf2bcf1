// Package database provides the gateway's local SQLite store.
//
// It holds what must survive a restart: device connections opened by the
// gateway, the settings document and the latest state snapshot. Schema
// changes are embedded migration files applied at start-up:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or have defaults, and
// every .up.sql has a matching .down.sql.
//
// All queries use parameterised statements. The database file is restricted
// to its owner (0600).
package database
