package mysql

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/pushgate/pushgate/server/contexts/ctxerr"
	"github.com/pushgate/pushgate/server/pushgate"
)

var dialect = goqu.Dialect("mysql")

// NewInstallation registers a device installation under its variant. Token
// endpoints are stored lower-cased so provider feedback can match them
// case-insensitively.
func (ds *Datastore) NewInstallation(ctx context.Context, installation *pushgate.Installation) (*pushgate.Installation, error) {
	variant, err := ds.VariantByVariantID(ctx, installation.VariantID)
	if err != nil {
		return nil, err
	}
	installation.EndpointID = pushgate.NormalizeEndpoint(variant.Type, installation.EndpointID)

	err = ds.withRetryTxx(ctx, func(tx sqlx.ExtContext) error {
		sqlStatement := `
			INSERT INTO installations (
				variant_id,
				endpoint_id,
				alias,
				device_type,
				enabled
			) VALUES ( ?, ?, ?, ?, ? )
		`
		result, err := tx.ExecContext(ctx, sqlStatement,
			installation.VariantID,
			installation.EndpointID,
			installation.Alias,
			installation.DeviceType,
			installation.Enabled,
		)
		if err != nil {
			if isDuplicate(err) {
				return ctxerr.Wrap(ctx, alreadyExists("Installation", installation.EndpointID))
			}
			return ctxerr.Wrap(ctx, err, "insert installation")
		}

		id, _ := result.LastInsertId()
		installation.ID = uint(id)

		for _, category := range installation.Categories {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO installation_categories (installation_id, category) VALUES (?, ?)`,
				installation.ID, category,
			)
			if err != nil && !isDuplicate(err) {
				return ctxerr.Wrap(ctx, err, "insert installation category")
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return installation, nil
}

// InstallationByEndpoint returns the installation registered under the variant
// with the given endpoint identifier.
func (ds *Datastore) InstallationByEndpoint(ctx context.Context, variantID, endpointID string) (*pushgate.Installation, error) {
	sqlStatement := `
		SELECT
			id,
			variant_id,
			endpoint_id,
			alias,
			device_type,
			enabled,
			created_at,
			updated_at
		FROM installations
		WHERE variant_id = ? AND endpoint_id = ?
		LIMIT 1
	`
	var installation pushgate.Installation
	err := sqlx.GetContext(ctx, ds.reader, &installation, sqlStatement, variantID, endpointID)
	switch {
	case err == sql.ErrNoRows:
		return nil, ctxerr.Wrap(ctx, notFound("Installation").WithName(endpointID))
	case err != nil:
		return nil, ctxerr.Wrap(ctx, err, "select installation by endpoint")
	}

	if err := ds.loadCategories(ctx, &installation); err != nil {
		return nil, err
	}
	return &installation, nil
}

func (ds *Datastore) loadCategories(ctx context.Context, installation *pushgate.Installation) error {
	var categories []string
	err := sqlx.SelectContext(ctx, ds.reader, &categories,
		`SELECT category FROM installation_categories WHERE installation_id = ? ORDER BY category`,
		installation.ID,
	)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "select installation categories")
	}
	installation.Categories = categories
	return nil
}

// ListEndpointsByCriteria resolves the endpoint identifiers of the enabled
// installations of a variant matching the criteria. The dimensions of the
// criteria are ANDed together; within a dimension any value matches. Absent
// dimensions impose no constraint, so a nil criteria selects every enabled
// installation of the variant. Unknown variant identifiers produce an empty
// result rather than an error.
func (ds *Datastore) ListEndpointsByCriteria(ctx context.Context, variantID string, criteria *pushgate.Criteria) ([]string, error) {
	query := dialect.
		From(goqu.I("installations").As("i")).
		SelectDistinct(goqu.I("i.endpoint_id")).
		Where(
			goqu.I("i.variant_id").Eq(variantID),
			goqu.I("i.enabled").IsTrue(),
		)

	if criteria != nil {
		if len(criteria.Aliases) > 0 {
			query = query.Where(goqu.I("i.alias").In(criteria.Aliases))
		}
		if len(criteria.DeviceTypes) > 0 {
			query = query.Where(goqu.I("i.device_type").In(criteria.DeviceTypes))
		}
		if len(criteria.Categories) > 0 {
			sub := dialect.
				From(goqu.I("installation_categories").As("ic")).
				Select(goqu.L("1")).
				Where(
					goqu.I("ic.installation_id").Eq(goqu.I("i.id")),
					goqu.I("ic.category").In(criteria.Categories),
				)
			query = query.Where(goqu.L("EXISTS ?", sub))
		}
	}

	sqlStatement, args, err := query.ToSQL()
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "build criteria query")
	}

	var endpoints []string
	if err := sqlx.SelectContext(ctx, ds.reader, &endpoints, sqlStatement, args...); err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select endpoints by criteria")
	}
	return endpoints, nil
}

// ListInstallationsByEndpoints returns the installations of the variant whose
// endpoint identifier is in the given set. An empty set short-circuits to an
// empty result without a round trip.
func (ds *Datastore) ListInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) ([]*pushgate.Installation, error) {
	if len(endpointIDs) == 0 {
		return []*pushgate.Installation{}, nil
	}

	sqlStatement := `
		SELECT
			id,
			variant_id,
			endpoint_id,
			alias,
			device_type,
			enabled,
			created_at,
			updated_at
		FROM installations
		WHERE variant_id = ? AND endpoint_id IN (?)
	`
	sqlStatement, args, err := sqlx.In(sqlStatement, variantID, endpointIDs)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "build installations by endpoints query")
	}

	var installations []*pushgate.Installation
	if err := sqlx.SelectContext(ctx, ds.reader, &installations, sqlStatement, args...); err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select installations by endpoints")
	}
	return installations, nil
}

// DeleteInstallationsByEndpoints removes the installations of the variant
// whose endpoint identifier is in the given set. Category rows go with the
// installation via the foreign key. Endpoints with no matching row are
// skipped, which makes the operation idempotent.
func (ds *Datastore) DeleteInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) (uint, error) {
	if len(endpointIDs) == 0 {
		return 0, nil
	}

	var deleted uint
	err := ds.withRetryTxx(ctx, func(tx sqlx.ExtContext) error {
		sqlStatement := `
			DELETE FROM installations
			WHERE variant_id = ? AND endpoint_id IN (?)
		`
		sqlStatement, args, err := sqlx.In(sqlStatement, variantID, endpointIDs)
		if err != nil {
			return ctxerr.Wrap(ctx, err, "build delete installations query")
		}

		result, err := tx.ExecContext(ctx, sqlStatement, args...)
		if err != nil {
			return ctxerr.Wrap(ctx, err, "delete installations by endpoints")
		}

		rows, _ := result.RowsAffected()
		deleted = uint(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}
