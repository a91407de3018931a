// Package push defines the provider-kind-polymorphic sender contract of the
// dispatch engine. Concrete senders live in the subpackages apns, fcm and
// webpush; the registry maps variant types to sender factories so behavior
// differences stay a flat dispatch-by-kind table.
package push

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/pushgate/pushgate/server/pushgate"
)

// Doer is ostensibly an *http.Client
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the provider feedback for one send call.
type Response struct {
	// InvalidEndpoints are endpoint identifiers the provider considers stale
	// (e.g. uninstalled app), normalized to the lower-case convention used in
	// storage. The reaper removes the matching installations.
	InvalidEndpoints []string
}

// Sender submits one payload to a set of endpoints through a provider
// transport session scoped to a single variant's credentials.
type Sender interface {
	// Send is a no-op when endpoints is empty: no transport session is opened
	// for zero work. A transport-level failure abandons the whole call and is
	// returned as an error; per-endpoint rejections are collected in the
	// Response instead.
	Send(ctx context.Context, endpoints []string, message *pushgate.Message) (*Response, error)
}

// ErrNoCredentials is returned by sender factories when the variant lacks
// usable credential material. Distinct from a transport failure: the
// orchestrator short-circuits with a warning outcome instead of attempting a
// send.
var ErrNoCredentials = errors.New("variant has no usable push credentials")

// SenderFactory builds a sender bound to one variant's credentials.
type SenderFactory func(variant *pushgate.Variant) (Sender, error)

// Registry resolves the sender for a variant by its type.
type Registry struct {
	factories map[pushgate.VariantType]SenderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[pushgate.VariantType]SenderFactory)}
}

// Register installs the factory for a variant type, replacing any previous
// one.
func (r *Registry) Register(t pushgate.VariantType, f SenderFactory) {
	r.factories[t] = f
}

// SenderFor builds the sender for the variant. Unknown variant types and
// missing credential material both yield ErrNoCredentials: either way there
// is no sender available, and the dispatch must not be attempted.
func (r *Registry) SenderFor(variant *pushgate.Variant) (Sender, error) {
	f, ok := r.factories[variant.Type]
	if !ok {
		return nil, errors.Wrapf(ErrNoCredentials, "no sender registered for variant type %q", variant.Type)
	}
	return f(variant)
}
