// Package database provides SQLite connectivity for the device catalog.
//
// This package manages:
//   - Database connection with WAL mode so API reads run during update cycles
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Transaction helpers used by the corpus to make each merge atomic
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be nullable or carry a
// default, and every .up.sql has a matching .down.sql.
package database
