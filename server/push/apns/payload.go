package apns

import (
	"encoding/json"
	"fmt"

	"github.com/RobotsAndPencils/buford/payload"
	"github.com/RobotsAndPencils/buford/payload/badge"
	"github.com/pushgate/pushgate/server/pushgate"
)

// maxPayloadBytes is the provider's documented limit for a notification
// payload over the HTTP/2 interface.
const maxPayloadBytes = 4096

// reservedKeys are payload keys owned by the provider mapping. Custom data
// colliding with one of these is a caller error, reported instead of being
// silently dropped.
var reservedKeys = map[string]bool{
	"aps":               true,
	"alert":             true,
	"sound":             true,
	"badge":             true,
	"content-available": true,
}

// BuildPayload renders a dispatch message into the provider's wire payload.
// Pure function, no I/O.
func BuildPayload(message *pushgate.Message) ([]byte, error) {
	aps := payload.APS{
		Alert:            payload.Alert{Body: message.Alert},
		Sound:            message.Sound,
		ContentAvailable: message.ContentAvailable,
	}

	if message.BadgeSet() {
		if *message.Badge < 0 {
			return nil, pushgate.NewInvalidArgumentError("badge", "must not be negative")
		}
		aps.Badge = badge.New(uint(*message.Badge))
	}

	wire := aps.Map()
	apsMap, ok := wire["aps"].(map[string]interface{})
	if !ok {
		apsMap = map[string]interface{}{}
		wire["aps"] = apsMap
	}
	// The sound field is always present, even when empty: the provider's
	// legacy handling of an omitted sound differs from an explicit value.
	apsMap["sound"] = message.Sound

	// Custom data is merged at the payload's top level.
	for k, v := range message.Data {
		if reservedKeys[k] {
			return nil, pushgate.NewInvalidArgumentError("data", fmt.Sprintf("%q is a reserved payload key", k))
		}
		wire[k] = v
	}

	b, err := json.Marshal(wire)
	if err != nil {
		return nil, pushgate.NewInvalidArgumentError("data", fmt.Sprintf("not serializable: %v", err))
	}
	if len(b) > maxPayloadBytes {
		return nil, pushgate.NewInvalidArgumentError("message", fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", len(b), maxPayloadBytes))
	}
	return b, nil
}
