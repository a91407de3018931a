package pushgate

// Criteria narrows the set of installations a dispatch targets. Every
// dimension is optional; a nil or empty list imposes no constraint. Present
// dimensions are ANDed together: aliases and device types are
// exact-match-any, categories match when the installation's category set
// intersects the given list (ANY-of, never ALL-of).
type Criteria struct {
	Categories  []string `json:"categories"`
	Aliases     []string `json:"aliases"`
	DeviceTypes []string `json:"device_types"`
}

// Empty reports whether the criteria imposes no constraint at all.
func (c *Criteria) Empty() bool {
	return c == nil || (len(c.Categories) == 0 && len(c.Aliases) == 0 && len(c.DeviceTypes) == 0)
}

// Message is the transient, provider-independent notification content for one
// dispatch.
type Message struct {
	Alert string `json:"alert"`
	Sound string `json:"sound"`
	// Badge distinguishes "unset" (nil) from an explicit value, including 0.
	// An omitted badge and a zero badge are different user-visible outcomes.
	Badge            *int                   `json:"badge,omitempty"`
	ContentAvailable bool                   `json:"content_available"`
	Data             map[string]interface{} `json:"data,omitempty"`
	// TimeToLive is in seconds; -1 means "use the provider maximum".
	TimeToLive int `json:"time_to_live"`
}

// BadgeSet reports whether the caller set an explicit badge value.
func (m *Message) BadgeSet() bool {
	return m.Badge != nil
}
