package pushgate

import "context"

// Datastore is the storage surface the dispatch engine consumes. The
// administrative CRUD around applications, variants and users lives outside
// this engine; only the operations resolution, registration lookups and the
// reaper need are declared here.
type Datastore interface {
	///////////////////////////////////////////////////////////////////////////
	// VariantStore

	NewVariant(ctx context.Context, variant *Variant) (*Variant, error)
	// VariantByVariantID returns the variant for the given public identifier,
	// or a NotFoundError.
	VariantByVariantID(ctx context.Context, variantID string) (*Variant, error)

	///////////////////////////////////////////////////////////////////////////
	// InstallationStore

	NewInstallation(ctx context.Context, installation *Installation) (*Installation, error)
	// InstallationByEndpoint returns the installation registered under the
	// variant with the given endpoint identifier.
	InstallationByEndpoint(ctx context.Context, variantID, endpointID string) (*Installation, error)

	// ListEndpointsByCriteria resolves the endpoint identifiers of the enabled
	// installations of a variant matching the criteria. Unknown or malformed
	// variant identifiers yield an empty result, not an error. The result is
	// deduplicated and order-irrelevant.
	ListEndpointsByCriteria(ctx context.Context, variantID string, criteria *Criteria) ([]string, error)

	// ListInstallationsByEndpoints returns the installations of the variant
	// whose endpoint identifier is in the given set. An empty set
	// short-circuits to an empty result without a round trip.
	ListInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) ([]*Installation, error)

	// DeleteInstallationsByEndpoints removes the installations of the variant
	// whose endpoint identifier is in the given set, returning the number of
	// rows removed. Deleting already-deleted installations is idempotent.
	DeleteInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) (uint, error)

	///////////////////////////////////////////////////////////////////////////
	// Lifecycle

	// MigrateTables creates the schema if absent. Safe to run on every start.
	MigrateTables(ctx context.Context) error
	Close() error
	Name() string
}
