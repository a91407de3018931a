// Package webpush sends update notifications to URL-endpoint based variants.
// Each installation's endpoint identifier is a push-update URL owned by the
// network's push server; a send is an HTTP PUT of a new version to that URL.
package webpush

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/WatchBeam/clock"
	"github.com/pkg/errors"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
)

// Sender submits version updates for one simplepush variant. The variant
// carries no credential material: the endpoint URLs are the capability.
type Sender struct {
	client push.Doer
	clock  clock.Clock
}

type senderOpts struct {
	client push.Doer
	clock  clock.Clock
}

// Option customizes sender construction.
type Option func(*senderOpts)

// WithClient sets the HTTP client used for provider sessions.
func WithClient(c push.Doer) Option {
	return func(o *senderOpts) {
		o.client = c
	}
}

// WithClock sets the time source for version numbers.
func WithClock(c clock.Clock) Option {
	return func(o *senderOpts) {
		o.clock = c
	}
}

// NewSenderFactory returns the registry factory for simplepush variants.
func NewSenderFactory(opts ...Option) push.SenderFactory {
	return func(variant *pushgate.Variant) (push.Sender, error) {
		return NewSender(variant, opts...)
	}
}

func NewSender(variant *pushgate.Variant, opts ...Option) (*Sender, error) {
	o := senderOpts{
		client: http.DefaultClient,
		clock:  clock.C,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if variant.Type != pushgate.VariantTypeSimplePush {
		return nil, errors.Errorf("webpush sender does not handle variant type %q", variant.Type)
	}

	return &Sender{client: o.client, clock: o.clock}, nil
}

// BuildPayload renders the version update body. The network protocol carries
// no message content, only a monotonically increasing version; the current
// unix timestamp serves as one.
func BuildPayload(now int64) string {
	return fmt.Sprintf("version=%d", now)
}

// Send PUTs a new version to every endpoint URL. Endpoints answering 404 or
// 410 no longer exist on the push server and are reported for cleanup.
func (s *Sender) Send(ctx context.Context, endpoints []string, message *pushgate.Message) (*push.Response, error) {
	if len(endpoints) == 0 {
		// no need to open a session for zero work
		return &push.Response{}, nil
	}

	body := BuildPayload(s.clock.Now().Unix())

	resp := &push.Response{}
	for _, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(body))
		if err != nil {
			// a malformed stored URL can never be delivered to
			resp.InvalidEndpoints = append(resp.InvalidEndpoints, endpoint)
			continue
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		httpResp, err := s.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "push transport")
		}
		io.Copy(io.Discard, httpResp.Body) //nolint:errcheck
		httpResp.Body.Close()

		switch httpResp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			resp.InvalidEndpoints = append(resp.InvalidEndpoints, endpoint)
		}
	}
	return resp, nil
}
