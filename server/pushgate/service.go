package pushgate

import "context"

// DispatchOutcome reports whether a send attempt was made for one variant and
// whether cleanup was scheduled. The engine does not report per-device
// delivery success.
type DispatchOutcome struct {
	DispatchID string `json:"dispatch_id"`
	VariantID  string `json:"variant_id"`
	// EndpointCount is the number of endpoints the criteria resolved to.
	EndpointCount int `json:"endpoint_count"`
	// Warning is set when the dispatch short-circuited non-fatally: missing
	// credentials, disabled variant, or a transport failure.
	Warning          string `json:"warning,omitempty"`
	CleanupScheduled bool   `json:"cleanup_scheduled"`
}

// Service is the dispatch engine's surface for the request-handling layer.
type Service interface {
	// Dispatch resolves the recipients of one variant, sends the message and
	// schedules cleanup of endpoints the provider reported invalid. An unknown
	// variant yields an empty outcome, not an error. Caller-input errors
	// (reserved payload keys, oversize payloads) are returned as errors;
	// credential and transport problems become warning outcomes.
	Dispatch(ctx context.Context, variantID string, criteria *Criteria, message *Message) (*DispatchOutcome, error)

	// DispatchToApplication fans one message out to several variants
	// concurrently. Outcomes are per-variant; one variant's failure never
	// affects its siblings.
	DispatchToApplication(ctx context.Context, variantIDs []string, criteria *Criteria, message *Message) ([]*DispatchOutcome, error)
}
