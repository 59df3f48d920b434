// Package dialect provides the database dialect strategies used when
// rendering statements.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//   - SQLServer: Microsoft SQL Server
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres  = "postgres"
//	dialect.MySQL     = "mysql"
//	dialect.SQLite    = "sqlite"
//	dialect.SQLServer = "sqlserver"
//
// Get also accepts common driver names such as "pgx" and "sqlite3".
//
// # Strategy Interface
//
// A Strategy owns everything that differs between databases: identifier
// quoting, placeholders, paging, table hints, identity returning and the
// upsert syntax:
//
//	Postgres, SQLite  INSERT ... ON CONFLICT (...) DO UPDATE SET c = EXCLUDED.c
//	MySQL             INSERT ... ON DUPLICATE KEY UPDATE c = VALUES(c)
//	SQL Server        MERGE INTO ... USING (VALUES ...) AS S (...) ON (...)
//
// Additional dialects are plugged in with Register.
package dialect
