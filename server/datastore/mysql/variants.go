package mysql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pushgate/pushgate/server/contexts/ctxerr"
	"github.com/pushgate/pushgate/server/pushgate"
)

// NewVariant registers a variant, minting a public identifier when the caller
// did not provide one.
func (ds *Datastore) NewVariant(ctx context.Context, variant *pushgate.Variant) (*pushgate.Variant, error) {
	if variant.VariantID == "" {
		variant.VariantID = uuid.New().String()
	}

	err := ds.withTx(ctx, func(tx sqlx.ExtContext) error {
		sqlStatement := `
			INSERT INTO variants (
				variant_id,
				name,
				developer,
				enabled,
				type,
				certificate,
				passphrase,
				production,
				api_key,
				sender_id
			) VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )
		`
		result, err := tx.ExecContext(ctx, sqlStatement,
			variant.VariantID,
			variant.Name,
			variant.Developer,
			variant.Enabled,
			variant.Type,
			variant.Certificate,
			variant.Passphrase,
			variant.Production,
			variant.APIKey,
			variant.SenderID,
		)
		if err != nil {
			if isDuplicate(err) {
				return ctxerr.Wrap(ctx, alreadyExists("Variant", variant.VariantID))
			}
			return ctxerr.Wrap(ctx, err, "insert variant")
		}

		id, _ := result.LastInsertId()
		variant.ID = uint(id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return variant, nil
}

// VariantByVariantID returns the variant registered under the given public
// identifier.
func (ds *Datastore) VariantByVariantID(ctx context.Context, variantID string) (*pushgate.Variant, error) {
	sqlStatement := `
		SELECT
			id,
			variant_id,
			name,
			developer,
			enabled,
			type,
			certificate,
			passphrase,
			production,
			api_key,
			sender_id,
			created_at,
			updated_at
		FROM variants
		WHERE variant_id = ?
		LIMIT 1
	`
	var variant pushgate.Variant
	err := sqlx.GetContext(ctx, ds.reader, &variant, sqlStatement, variantID)
	switch {
	case err == sql.ErrNoRows:
		return nil, ctxerr.Wrap(ctx, notFound("Variant").WithName(variantID))
	case err != nil:
		return nil, ctxerr.Wrap(ctx, err, "select variant by variant_id")
	}

	return &variant, nil
}
