package pushgate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestVariantTypeValid(t *testing.T) {
	assert.True(t, VariantTypeIOS.Valid())
	assert.True(t, VariantTypeAndroid.Valid())
	assert.True(t, VariantTypeSimplePush.Valid())
	assert.False(t, VariantType("windows").Valid())
	assert.False(t, VariantType("").Valid())
}

func TestNormalizeEndpoint(t *testing.T) {
	// Device tokens are case-insensitive identifiers, URL endpoints are not.
	assert.Equal(t, "abc123", NormalizeEndpoint(VariantTypeIOS, "ABC123"))
	assert.Equal(t, "abc123", NormalizeEndpoint(VariantTypeAndroid, "ABC123"))
	assert.Equal(t, "http://push.example.com/Ch1", NormalizeEndpoint(VariantTypeSimplePush, "http://push.example.com/Ch1"))
}

func TestCriteriaEmpty(t *testing.T) {
	var criteria *Criteria
	assert.True(t, criteria.Empty())
	assert.True(t, (&Criteria{}).Empty())
	assert.True(t, (&Criteria{Aliases: []string{}}).Empty())
	assert.False(t, (&Criteria{Aliases: []string{"a"}}).Empty())
}

func TestMessageBadgeSet(t *testing.T) {
	zero := 0
	assert.False(t, (&Message{}).BadgeSet())
	assert.True(t, (&Message{Badge: &zero}).BadgeSet())
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("nope")))
}

func TestInvalidArgumentError(t *testing.T) {
	err := NewInvalidArgumentError("badge", "must not be negative")
	assert.True(t, IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "badge")

	assert.False(t, IsInvalidArgument(errors.New("other")))
	assert.True(t, IsInvalidArgument(errors.Wrap(err, "building payload")))
}
