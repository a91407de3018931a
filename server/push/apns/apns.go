// Package apns sends notifications to certificate+token based variants
// through Apple's HTTP/2 push service.
package apns

import (
	"context"
	"crypto/tls"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RobotsAndPencils/buford/certificate"
	bufordpush "github.com/RobotsAndPencils/buford/push"
	"github.com/WatchBeam/clock"
	"github.com/pkg/errors"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
	"golang.org/x/net/http2"
)

const defaultWorkers = 5

// maxExpiry is the farthest future expiration the provider documents; a TTL
// of -1 resolves here.
var maxExpiry = time.Unix(math.MaxInt32, 0)

// Sender submits payloads for one ios variant. The decoded certificate is
// scoped to this instance and never shared across variants.
type Sender struct {
	service *bufordpush.Service
	clock   clock.Clock
	workers int
}

type senderOpts struct {
	newClient func(cert tls.Certificate) (*http.Client, error)
	clock     clock.Clock
	workers   int
}

// Option customizes sender construction.
type Option func(*senderOpts)

// WithNewClient sets a custom HTTP client factory, receiving the variant's
// decoded certificate.
func WithNewClient(fn func(cert tls.Certificate) (*http.Client, error)) Option {
	return func(o *senderOpts) {
		o.newClient = fn
	}
}

// WithClock sets the time source used to resolve TTLs into expiration dates.
func WithClock(c clock.Clock) Option {
	return func(o *senderOpts) {
		o.clock = c
	}
}

// WithWorkers bounds the per-send request fan-out.
func WithWorkers(n int) Option {
	return func(o *senderOpts) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewSenderFactory returns the registry factory for ios variants.
func NewSenderFactory(opts ...Option) push.SenderFactory {
	return func(variant *pushgate.Variant) (push.Sender, error) {
		return NewSender(variant, opts...)
	}
}

// NewSender builds a sender scoped to the variant's certificate. Missing or
// undecodable credential material yields push.ErrNoCredentials; the
// production/sandbox destination comes from the variant's own flag.
func NewSender(variant *pushgate.Variant, opts ...Option) (*Sender, error) {
	o := senderOpts{
		newClient: bufordpush.NewClient,
		clock:     clock.C,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if variant.Type != pushgate.VariantTypeIOS {
		return nil, errors.Errorf("apns sender does not handle variant type %q", variant.Type)
	}
	if len(variant.Certificate) == 0 {
		return nil, errors.Wrap(push.ErrNoCredentials, "variant has no certificate")
	}
	cert, err := certificate.Decode(variant.Certificate, variant.Passphrase)
	if err != nil {
		return nil, errors.Wrapf(push.ErrNoCredentials, "decode certificate: %v", err)
	}

	client, err := o.newClient(cert)
	if err != nil {
		return nil, errors.Wrap(err, "create push client")
	}

	host := bufordpush.Development
	if variant.Production {
		host = bufordpush.Production
	}

	return &Sender{
		service: bufordpush.NewService(client, host),
		clock:   o.clock,
		workers: o.workers,
	}, nil
}

// Send pushes the message to every device token. Tokens the provider reports
// inactive are returned lower-cased: the provider may echo tokens in a
// different case than devices registered them with.
func (s *Sender) Send(ctx context.Context, endpoints []string, message *pushgate.Message) (*push.Response, error) {
	if len(endpoints) == 0 {
		// no need to open a session for zero work
		return &push.Response{}, nil
	}

	b, err := BuildPayload(message)
	if err != nil {
		return nil, err
	}
	headers := &bufordpush.Headers{Expiration: s.expiry(message.TimeToLive)}

	if len(endpoints) == 1 {
		return s.sendSerial(ctx, endpoints, headers, b)
	}
	return s.sendConcurrent(ctx, endpoints, headers, b)
}

func (s *Sender) sendSerial(ctx context.Context, endpoints []string, headers *bufordpush.Headers, payload []byte) (*push.Response, error) {
	resp := &push.Response{}
	for _, token := range endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := s.service.Push(token, headers, payload)
		invalid, fatal := classify(err)
		if fatal != nil {
			return nil, fatal
		}
		if invalid {
			resp.InvalidEndpoints = append(resp.InvalidEndpoints, strings.ToLower(token))
		}
	}
	return resp, nil
}

// sendConcurrent fans the requests out over a bounded worker pool.
func (s *Sender) sendConcurrent(ctx context.Context, endpoints []string, headers *bufordpush.Headers, payload []byte) (*push.Response, error) {
	workers := s.workers
	if len(endpoints) < workers {
		workers = len(endpoints)
	}

	type result struct {
		token string
		err   error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan result)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for token := range jobs {
				_, err := s.service.Push(token, headers, payload)
				results <- result{token: token, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, token := range endpoints {
			select {
			case jobs <- token:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	resp := &push.Response{}
	var transportErr error
	for r := range results {
		invalid, fatal := classify(r.err)
		if fatal != nil && transportErr == nil {
			// abandon the whole send, stop feeding the workers
			transportErr = fatal
			cancel()
		}
		if invalid {
			resp.InvalidEndpoints = append(resp.InvalidEndpoints, strings.ToLower(r.token))
		}
	}
	if transportErr != nil {
		return nil, transportErr
	}
	return resp, nil
}

// classify sorts a per-token push error into "endpoint is stale", "session is
// broken, abandon the send" or "best-effort rejection, move on".
func classify(err error) (invalid bool, fatal error) {
	if err == nil {
		return false, nil
	}

	var pushErr *bufordpush.Error
	if errors.As(err, &pushErr) {
		switch pushErr.Reason {
		case bufordpush.ErrMissingDeviceToken,
			bufordpush.ErrBadDeviceToken,
			bufordpush.ErrUnregistered,
			bufordpush.ErrDeviceTokenNotForTopic:
			return true, nil
		case bufordpush.ErrBadCertificate,
			bufordpush.ErrBadCertificateEnvironment,
			bufordpush.ErrForbidden,
			bufordpush.ErrIdleTimeout,
			bufordpush.ErrShutdown,
			bufordpush.ErrInternalServerError,
			bufordpush.ErrServiceUnavailable:
			return false, errors.Wrap(err, "push session rejected")
		}
		// other rejections are specific to this token, keep going
		return false, nil
	}

	var goAway http2.GoAwayError
	if errors.As(err, &goAway) {
		return false, errors.Wrap(err, "push connection closed")
	}

	// anything else is a transport-level failure
	return false, errors.Wrap(err, "push transport")
}

func (s *Sender) expiry(ttl int) time.Time {
	if ttl == -1 {
		return maxExpiry
	}
	return s.clock.Now().Add(time.Duration(ttl) * time.Second)
}
