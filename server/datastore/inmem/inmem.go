// Package inmem implements the pushgate.Datastore interface in memory. It is
// a test double for the service layer and not fit for production use.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/WatchBeam/clock"
	"github.com/google/uuid"

	"github.com/pushgate/pushgate/server/contexts/ctxerr"
	"github.com/pushgate/pushgate/server/pushgate"
)

// Datastore is an in memory implementation of the pushgate.Datastore
// interface.
type Datastore struct {
	mtx sync.RWMutex

	variants      map[uint]*pushgate.Variant
	installations map[uint]*pushgate.Installation
	nextIDs       map[string]uint

	clock clock.Clock
}

// New returns an in memory datastore.
func New(c clock.Clock) *Datastore {
	return &Datastore{
		variants:      make(map[uint]*pushgate.Variant),
		installations: make(map[uint]*pushgate.Installation),
		nextIDs:       make(map[string]uint),
		clock:         c,
	}
}

func (d *Datastore) nextID(kind string) uint {
	d.nextIDs[kind]++
	return d.nextIDs[kind]
}

func (d *Datastore) NewVariant(ctx context.Context, variant *pushgate.Variant) (*pushgate.Variant, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if variant.VariantID == "" {
		variant.VariantID = uuid.New().String()
	}
	for _, existing := range d.variants {
		if existing.VariantID == variant.VariantID {
			return nil, ctxerr.Errorf(ctx, "Variant %s already exists", variant.VariantID)
		}
	}

	v := *variant
	v.ID = d.nextID("variants")
	v.CreatedAt = d.clock.Now()
	v.UpdatedAt = d.clock.Now()
	d.variants[v.ID] = &v

	variant.ID = v.ID
	return variant, nil
}

func (d *Datastore) VariantByVariantID(ctx context.Context, variantID string) (*pushgate.Variant, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	for _, variant := range d.variants {
		if variant.VariantID == variantID {
			v := *variant
			return &v, nil
		}
	}
	return nil, ctxerr.Wrap(ctx, notFound("Variant", variantID))
}

func (d *Datastore) NewInstallation(ctx context.Context, installation *pushgate.Installation) (*pushgate.Installation, error) {
	variant, err := d.VariantByVariantID(ctx, installation.VariantID)
	if err != nil {
		return nil, err
	}
	installation.EndpointID = pushgate.NormalizeEndpoint(variant.Type, installation.EndpointID)

	d.mtx.Lock()
	defer d.mtx.Unlock()

	for _, existing := range d.installations {
		if existing.VariantID == installation.VariantID && existing.EndpointID == installation.EndpointID {
			return nil, ctxerr.Errorf(ctx, "Installation %s already exists", installation.EndpointID)
		}
	}

	i := *installation
	i.Categories = append([]string(nil), installation.Categories...)
	i.ID = d.nextID("installations")
	i.CreatedAt = d.clock.Now()
	i.UpdatedAt = d.clock.Now()
	d.installations[i.ID] = &i

	installation.ID = i.ID
	return installation, nil
}

func (d *Datastore) InstallationByEndpoint(ctx context.Context, variantID, endpointID string) (*pushgate.Installation, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	for _, installation := range d.installations {
		if installation.VariantID == variantID && installation.EndpointID == endpointID {
			i := *installation
			i.Categories = append([]string(nil), installation.Categories...)
			return &i, nil
		}
	}
	return nil, ctxerr.Wrap(ctx, notFound("Installation", endpointID))
}

func (d *Datastore) ListEndpointsByCriteria(ctx context.Context, variantID string, criteria *pushgate.Criteria) ([]string, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	seen := make(map[string]bool)
	var endpoints []string
	for _, installation := range d.installations {
		if installation.VariantID != variantID || !installation.Enabled {
			continue
		}
		if !matchesCriteria(installation, criteria) {
			continue
		}
		if seen[installation.EndpointID] {
			continue
		}
		seen[installation.EndpointID] = true
		endpoints = append(endpoints, installation.EndpointID)
	}
	sort.Strings(endpoints)
	return endpoints, nil
}

func matchesCriteria(installation *pushgate.Installation, criteria *pushgate.Criteria) bool {
	if criteria == nil {
		return true
	}
	if len(criteria.Aliases) > 0 && !contains(criteria.Aliases, installation.Alias) {
		return false
	}
	if len(criteria.DeviceTypes) > 0 && !contains(criteria.DeviceTypes, installation.DeviceType) {
		return false
	}
	if len(criteria.Categories) > 0 {
		matched := false
		for _, category := range installation.Categories {
			if contains(criteria.Categories, category) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func (d *Datastore) ListInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) ([]*pushgate.Installation, error) {
	if len(endpointIDs) == 0 {
		return []*pushgate.Installation{}, nil
	}

	d.mtx.RLock()
	defer d.mtx.RUnlock()

	installations := []*pushgate.Installation{}
	for _, installation := range d.installations {
		if installation.VariantID == variantID && contains(endpointIDs, installation.EndpointID) {
			i := *installation
			installations = append(installations, &i)
		}
	}
	return installations, nil
}

func (d *Datastore) DeleteInstallationsByEndpoints(ctx context.Context, variantID string, endpointIDs []string) (uint, error) {
	if len(endpointIDs) == 0 {
		return 0, nil
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	var deleted uint
	for id, installation := range d.installations {
		if installation.VariantID == variantID && contains(endpointIDs, installation.EndpointID) {
			delete(d.installations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (d *Datastore) MigrateTables(ctx context.Context) error {
	return nil
}

func (d *Datastore) Close() error {
	return nil
}

func (d *Datastore) Name() string {
	return "inmem"
}

type notFoundError struct {
	kind string
	name string
}

func notFound(kind, name string) *notFoundError {
	return &notFoundError{kind: kind, name: name}
}

func (e *notFoundError) Error() string {
	var b strings.Builder
	b.WriteString(e.kind)
	if e.name != "" {
		b.WriteString(" (")
		b.WriteString(e.name)
		b.WriteString(")")
	}
	b.WriteString(" was not found in the datastore")
	return b.String()
}

func (e *notFoundError) IsNotFound() bool {
	return true
}

var _ pushgate.Datastore = (*Datastore)(nil)
