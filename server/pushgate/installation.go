package pushgate

import (
	"strings"
	"time"
)

// Installation is one registered device or subscription under exactly one
// variant. The endpoint identifier is a device token for token based variants
// (stored lower-case, unique per variant) or a push-update URL for simplepush
// variants.
type Installation struct {
	ID        uint   `json:"id" db:"id"`
	VariantID string `json:"variant_id" db:"variant_id"`
	// EndpointID is the delivery target: device token or push URL.
	EndpointID string `json:"endpoint_id" db:"endpoint_id"`
	// Alias is an opaque application-defined identity, e.g. a user email.
	Alias      string   `json:"alias" db:"alias"`
	Categories []string `json:"categories" db:"-"`
	DeviceType string   `json:"device_type" db:"device_type"`
	Enabled    bool     `json:"enabled" db:"enabled"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEndpoint lower-cases a device token so registrations and
// provider feedback compare byte-for-byte. Push URLs keep their case.
func NormalizeEndpoint(variantType VariantType, endpoint string) string {
	switch variantType {
	case VariantTypeIOS, VariantTypeAndroid:
		return strings.ToLower(endpoint)
	}
	return endpoint
}
