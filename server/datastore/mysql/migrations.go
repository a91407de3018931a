package mysql

import (
	"context"

	"github.com/pushgate/pushgate/server/contexts/ctxerr"
)

// tableDDL holds the schema statements executed by MigrateTables. Each
// statement is idempotent so the migration can run on every startup.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS variants (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		variant_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		developer VARCHAR(255) NOT NULL DEFAULT '',
		enabled TINYINT(1) NOT NULL DEFAULT TRUE,
		type VARCHAR(16) NOT NULL,
		certificate BLOB,
		passphrase VARCHAR(255) NOT NULL DEFAULT '',
		production TINYINT(1) NOT NULL DEFAULT FALSE,
		api_key VARCHAR(255) NOT NULL DEFAULT '',
		sender_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY idx_variants_variant_id (variant_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS installations (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		variant_id VARCHAR(255) NOT NULL,
		endpoint_id VARCHAR(4096) NOT NULL,
		alias VARCHAR(255) NOT NULL DEFAULT '',
		device_type VARCHAR(255) NOT NULL DEFAULT '',
		enabled TINYINT(1) NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY idx_installations_variant_endpoint (variant_id, endpoint_id(255)),
		KEY idx_installations_alias (alias),
		KEY idx_installations_device_type (device_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS installation_categories (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		installation_id INT UNSIGNED NOT NULL,
		category VARCHAR(255) NOT NULL,
		UNIQUE KEY idx_installation_categories (installation_id, category),
		KEY idx_installation_categories_category (category),
		FOREIGN KEY fk_installation_categories_installation (installation_id)
			REFERENCES installations (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// MigrateTables creates the pushd schema if it does not already exist.
func (ds *Datastore) MigrateTables(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if _, err := ds.writer.ExecContext(ctx, ddl); err != nil {
			return ctxerr.Wrap(ctx, err, "migrate tables")
		}
	}
	return nil
}
