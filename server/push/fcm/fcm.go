// Package fcm sends notifications to API-key based variants through the FCM
// HTTP interface.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
)

const (
	// DefaultEndpoint is the provider's documented send URL.
	DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

	// maxTTLSeconds is the provider's documented maximum time-to-live (four
	// weeks); a TTL of -1 resolves here.
	maxTTLSeconds = 2419200
)

// staleResults are per-token error strings after which the registration id
// is gone for good and should be reaped.
var staleResults = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
}

// reservedKeys are data payload keys owned by the provider. The provider also
// reserves the "google." and "gcm." key prefixes.
var reservedKeys = map[string]bool{
	"from":             true,
	"notification":     true,
	"registration_ids": true,
	"collapse_key":     true,
	"time_to_live":     true,
}

// Sender submits payloads for one android variant.
type Sender struct {
	apiKey   string
	endpoint string
	client   push.Doer
}

type senderOpts struct {
	endpoint string
	client   push.Doer
}

// Option customizes sender construction.
type Option func(*senderOpts)

// WithClient sets the HTTP client used for provider sessions.
func WithClient(c push.Doer) Option {
	return func(o *senderOpts) {
		o.client = c
	}
}

// WithEndpoint overrides the provider send URL.
func WithEndpoint(url string) Option {
	return func(o *senderOpts) {
		o.endpoint = url
	}
}

// NewSenderFactory returns the registry factory for android variants.
func NewSenderFactory(opts ...Option) push.SenderFactory {
	return func(variant *pushgate.Variant) (push.Sender, error) {
		return NewSender(variant, opts...)
	}
}

// NewSender builds a sender scoped to the variant's API key.
func NewSender(variant *pushgate.Variant, opts ...Option) (*Sender, error) {
	o := senderOpts{
		endpoint: DefaultEndpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if variant.Type != pushgate.VariantTypeAndroid {
		return nil, errors.Errorf("fcm sender does not handle variant type %q", variant.Type)
	}
	if variant.APIKey == "" {
		return nil, errors.Wrap(push.ErrNoCredentials, "variant has no API key")
	}

	return &Sender{
		apiKey:   variant.APIKey,
		endpoint: o.endpoint,
		client:   o.client,
	}, nil
}

// BuildPayload renders a dispatch message into the provider's request body.
// Pure function, no I/O.
func BuildPayload(endpoints []string, message *pushgate.Message) ([]byte, error) {
	notification := map[string]interface{}{
		"body":  message.Alert,
		"sound": message.Sound,
	}
	if message.BadgeSet() {
		notification["badge"] = *message.Badge
	}

	body := map[string]interface{}{
		"registration_ids": endpoints,
		"notification":     notification,
		"time_to_live":     resolveTTL(message.TimeToLive),
	}
	if message.ContentAvailable {
		body["content_available"] = true
	}

	if len(message.Data) > 0 {
		data := make(map[string]interface{}, len(message.Data))
		for k, v := range message.Data {
			if reservedKeys[k] || strings.HasPrefix(k, "google.") || strings.HasPrefix(k, "gcm.") {
				return nil, pushgate.NewInvalidArgumentError("data", fmt.Sprintf("%q is a reserved payload key", k))
			}
			data[k] = v
		}
		body["data"] = data
	}

	return json.Marshal(body)
}

func resolveTTL(ttl int) int {
	if ttl == -1 {
		return maxTTLSeconds
	}
	return ttl
}

// Send submits one batched request for all registration ids and harvests the
// per-token results for registrations the provider reports gone.
func (s *Sender) Send(ctx context.Context, endpoints []string, message *pushgate.Message) (*push.Response, error) {
	if len(endpoints) == 0 {
		// no need to open a session for zero work
		return &push.Response{}, nil
	}

	body, err := BuildPayload(endpoints, message)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.apiKey)

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "push transport")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("push rejected with status %d", httpResp.StatusCode)
	}

	var providerResp struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
		Results []struct {
			MessageID string `json:"message_id"`
			Error     string `json:"error"`
		} `json:"results"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&providerResp); err != nil {
		return nil, errors.Wrap(err, "decode push response")
	}

	resp := &push.Response{}
	// results come back positionally, matching the registration_ids order
	for i, result := range providerResp.Results {
		if i >= len(endpoints) {
			break
		}
		if staleResults[result.Error] {
			resp.InvalidEndpoints = append(resp.InvalidEndpoints, strings.ToLower(endpoints[i]))
		}
	}
	return resp, nil
}
