package history

import (
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/golang-migrate/migrate/v4/database"
)

// sqlDriver adapts the already-open ncruces SQLite connection to
// golang-migrate's database.Driver. The stock migrate drivers each pin
// their own SQLite implementation; this keeps the module on a single
// driver.
type sqlDriver struct {
	db *sql.DB
	mu sync.Mutex
}

const migrationsTable = "schema_migrations"

func newSQLDriver(db *sql.DB) (database.Driver, error) {
	d := &sqlDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqlDriver) ensureVersionTable() error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (version BIGINT NOT NULL, dirty BOOLEAN NOT NULL)`,
		migrationsTable,
	)
	_, err := d.db.Exec(query)
	return err
}

// Open is unused: the driver is always constructed over an existing
// connection via newSQLDriver.
func (d *sqlDriver) Open(string) (database.Driver, error) {
	return nil, fmt.Errorf("sqlDriver must be constructed with newSQLDriver")
}

func (d *sqlDriver) Close() error {
	// The connection is owned by history.DB; migrations must not close it.
	return nil
}

func (d *sqlDriver) Lock() error {
	d.mu.Lock()
	return nil
}

func (d *sqlDriver) Unlock() error {
	d.mu.Unlock()
	return nil
}

func (d *sqlDriver) Run(migration io.Reader) error {
	stmts, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("reading migration: %w", err)
	}
	if _, err := d.db.Exec(string(stmts)); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (d *sqlDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, migrationsTable)); err != nil {
		_ = tx.Rollback()
		return err
	}
	// NilVersion means no migration has been applied; keep the table empty.
	if version >= 0 {
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, migrationsTable),
			version, dirty,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *sqlDriver) Version() (int, bool, error) {
	var version int
	var dirty bool
	err := d.db.QueryRow(
		fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, migrationsTable),
	).Scan(&version, &dirty)
	switch {
	case err == sql.ErrNoRows:
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, err
	default:
		return version, dirty, nil
	}
}

func (d *sqlDriver) Drop() error {
	rows, err := d.db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range tables {
		if _, err := d.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table)); err != nil {
			return err
		}
	}
	return nil
}
