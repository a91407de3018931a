package inmem

import (
	"context"
	"testing"

	"github.com/WatchBeam/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/server/pushgate"
)

func seedDatastore(t *testing.T) *Datastore {
	ds := New(clock.NewMockClock())
	ctx := context.Background()

	_, err := ds.NewVariant(ctx, &pushgate.Variant{
		VariantID: "variant-1",
		Name:      "ios app",
		Enabled:   true,
		Type:      pushgate.VariantTypeIOS,
	})
	require.NoError(t, err)

	installations := []*pushgate.Installation{
		{VariantID: "variant-1", EndpointID: "tok1", Alias: "alice@example.com", DeviceType: "iPhone", Categories: []string{"sports"}, Enabled: true},
		{VariantID: "variant-1", EndpointID: "tok2", Alias: "bob@example.com", DeviceType: "iPad", Categories: []string{"news", "sports"}, Enabled: true},
		{VariantID: "variant-1", EndpointID: "tok3", Alias: "alice@example.com", DeviceType: "iPhone", Enabled: false},
	}
	for _, installation := range installations {
		_, err := ds.NewInstallation(ctx, installation)
		require.NoError(t, err)
	}
	return ds
}

func TestListEndpointsByCriteria(t *testing.T) {
	ds := seedDatastore(t)
	ctx := context.Background()

	for _, tt := range []struct {
		name     string
		criteria *pushgate.Criteria
		want     []string
	}{
		{"nil criteria selects all enabled", nil, []string{"tok1", "tok2"}},
		{"empty criteria equals nil criteria", &pushgate.Criteria{}, []string{"tok1", "tok2"}},
		{"empty lists impose no constraint", &pushgate.Criteria{Aliases: []string{}, Categories: []string{}}, []string{"tok1", "tok2"}},
		{"alias filter skips disabled", &pushgate.Criteria{Aliases: []string{"alice@example.com"}}, []string{"tok1"}},
		{"category matches any of", &pushgate.Criteria{Categories: []string{"news", "cooking"}}, []string{"tok2"}},
		{"shared category dedupes to one row each", &pushgate.Criteria{Categories: []string{"sports"}}, []string{"tok1", "tok2"}},
		{"dimensions are anded", &pushgate.Criteria{Categories: []string{"sports"}, DeviceTypes: []string{"iPad"}}, []string{"tok2"}},
		{"no match yields empty", &pushgate.Criteria{Aliases: []string{"carol@example.com"}}, nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := ds.ListEndpointsByCriteria(ctx, "variant-1", tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, endpoints)
		})
	}
}

func TestListEndpointsByCriteriaUnknownVariant(t *testing.T) {
	ds := seedDatastore(t)

	endpoints, err := ds.ListEndpointsByCriteria(context.Background(), "no-such-variant", nil)
	require.NoError(t, err)
	assert.Empty(t, endpoints)
}

func TestNewInstallationNormalizesTokenEndpoints(t *testing.T) {
	ds := seedDatastore(t)
	ctx := context.Background()

	installation, err := ds.NewInstallation(ctx, &pushgate.Installation{
		VariantID:  "variant-1",
		EndpointID: "ABCDEF0123",
		Enabled:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123", installation.EndpointID)

	got, err := ds.InstallationByEndpoint(ctx, "variant-1", "abcdef0123")
	require.NoError(t, err)
	assert.Equal(t, installation.ID, got.ID)
}

func TestNewInstallationUnknownVariant(t *testing.T) {
	ds := seedDatastore(t)

	_, err := ds.NewInstallation(context.Background(), &pushgate.Installation{
		VariantID:  "no-such-variant",
		EndpointID: "tok9",
	})
	require.Error(t, err)
	assert.True(t, pushgate.IsNotFound(err))
}

func TestDeleteInstallationsByEndpointsIdempotent(t *testing.T) {
	ds := seedDatastore(t)
	ctx := context.Background()

	deleted, err := ds.DeleteInstallationsByEndpoints(ctx, "variant-1", []string{"tok1", "tok9"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), deleted)

	// A second pass over the same endpoints removes nothing.
	deleted, err = ds.DeleteInstallationsByEndpoints(ctx, "variant-1", []string{"tok1", "tok9"})
	require.NoError(t, err)
	assert.Equal(t, uint(0), deleted)

	deleted, err = ds.DeleteInstallationsByEndpoints(ctx, "variant-1", nil)
	require.NoError(t, err)
	assert.Equal(t, uint(0), deleted)
}

func TestListInstallationsByEndpoints(t *testing.T) {
	ds := seedDatastore(t)
	ctx := context.Background()

	installations, err := ds.ListInstallationsByEndpoints(ctx, "variant-1", []string{"tok1", "tok3"})
	require.NoError(t, err)
	assert.Len(t, installations, 2)

	installations, err = ds.ListInstallationsByEndpoints(ctx, "variant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, installations)
}
