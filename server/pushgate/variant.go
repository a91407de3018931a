package pushgate

import "time"

// VariantType designates the push network a variant speaks to.
type VariantType string

const (
	// VariantTypeIOS is the certificate+token based APNs channel.
	VariantTypeIOS VariantType = "ios"
	// VariantTypeAndroid is the API-key based FCM channel.
	VariantTypeAndroid VariantType = "android"
	// VariantTypeSimplePush is the URL-endpoint based channel. It carries no
	// credential material.
	VariantTypeSimplePush VariantType = "simplepush"
)

// Valid reports whether t is one of the known variant types.
func (t VariantType) Valid() bool {
	switch t {
	case VariantTypeIOS, VariantTypeAndroid, VariantTypeSimplePush:
		return true
	}
	return false
}

// Variant is one platform-specific push channel under a push application.
// Installations register against a variant, and dispatches are always scoped
// to a single variant.
type Variant struct {
	ID uint `json:"id" db:"id"`
	// VariantID is the public identifier handed out to client SDKs.
	VariantID string      `json:"variant_id" db:"variant_id"`
	Name      string      `json:"name" db:"name"`
	Developer string      `json:"developer" db:"developer"`
	Enabled   bool        `json:"enabled" db:"enabled"`
	Type      VariantType `json:"type" db:"type"`

	// Certificate and Passphrase hold the PKCS#12 bundle for ios variants.
	Certificate []byte `json:"-" db:"certificate"`
	Passphrase  string `json:"-" db:"passphrase"`
	// Production selects the provider's production gateway over its sandbox.
	// It is a property of the variant, never of global configuration.
	Production bool `json:"production" db:"production"`

	// APIKey and SenderID credential android variants.
	APIKey   string `json:"-" db:"api_key"`
	SenderID string `json:"sender_id" db:"sender_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TokenBased reports whether the variant's endpoint identifiers are device
// tokens (stored lower-case) rather than push URLs.
func (v *Variant) TokenBased() bool {
	return v.Type == VariantTypeIOS || v.Type == VariantTypeAndroid
}
