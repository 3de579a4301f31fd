// Package database provides SQLite connectivity for HomeLink Core.
//
// This package manages:
//   - Database connection with WAL mode and busy timeout
//   - Embedded SQL migrations (via the migrations package)
//   - Health checks for startup verification
//
// SQLite is the durable store behind the device registry. The connection
// pool is limited to a single connection because SQLite supports only one
// writer; WAL mode still allows concurrent readers.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/homelink.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
