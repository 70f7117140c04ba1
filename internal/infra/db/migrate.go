package db

import (
	"database/sql"

	"webharvest/internal/repository/postgres"
)

// MigrateUp creates the scraped_data schema if it does not already exist.
// It is safe to call on every startup; every statement is idempotent.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(postgres.Schema); err != nil {
		return err
	}
	return nil
}

// MigrateDown drops the scraped_data table and its indexes. Use with
// caution: this deletes all harvested records.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_scraped_data_fulltext`,
		`DROP INDEX IF EXISTS idx_scraped_data_metadata`,
		`DROP INDEX IF EXISTS idx_scraped_data_timestamp`,
		`DROP INDEX IF EXISTS idx_scraped_data_source`,
		`DROP TABLE IF EXISTS scraped_data CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
