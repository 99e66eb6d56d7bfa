package streams

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is the base kind of a device event or cloud command stream.
type Type string

const (
	TypeButtonPress         Type = "button_press"
	TypeHeadPosition        Type = "head_position"
	TypeGlassesBattery      Type = "glasses_battery_update"
	TypePhoneBattery        Type = "phone_battery_update"
	TypeConnectionState     Type = "connection_state"
	TypeLocationUpdate      Type = "location_update"
	TypeLocationStream      Type = "location_stream"
	TypeCalendarEvent       Type = "calendar_event"
	TypeVad                 Type = "vad"
	TypePhoneNotification   Type = "phone_notification"
	TypeNotificationDismiss Type = "phone_notification_dismissed"
	TypeAudioChunk          Type = "audio_chunk"
	TypeVideo               Type = "video"
	TypeOpenDashboard       Type = "open_dashboard"
	TypePhotoTaken          Type = "photo_taken"
	TypeTranscription       Type = "transcription"
	TypeTranslation         Type = "translation"
	TypeAll                 Type = "all"
	TypeWildcard            Type = "*"
)

// baseTypes is the closed vocabulary of stream kinds.
var baseTypes = map[Type]bool{
	TypeButtonPress:         true,
	TypeHeadPosition:        true,
	TypeGlassesBattery:      true,
	TypePhoneBattery:        true,
	TypeConnectionState:     true,
	TypeLocationUpdate:      true,
	TypeLocationStream:      true,
	TypeCalendarEvent:       true,
	TypeVad:                 true,
	TypePhoneNotification:   true,
	TypeNotificationDismiss: true,
	TypeAudioChunk:          true,
	TypeVideo:               true,
	TypeOpenDashboard:       true,
	TypePhotoTaken:          true,
	TypeTranscription:       true,
	TypeTranslation:         true,
	TypeAll:                 true,
	TypeWildcard:            true,
}

// langPattern matches BCP-47-ish codes the glasses firmware actually sends:
// a lowercase primary subtag, optional uppercase region ("en", "en-US").
var langPattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)

// TierNames is the ordered accuracy vocabulary for location_stream, lowest
// fidelity first. Ranks and cache ages live in config; the names are fixed.
var TierNames = []string{
	"reduced",
	"threeKilometers",
	"kilometer",
	"hundredMeters",
	"tenMeters",
	"standard",
	"high",
	"realtime",
}

var tierSet = func() map[string]bool {
	m := make(map[string]bool, len(TierNames))
	for _, n := range TierNames {
		m[n] = true
	}
	return m
}()

// IsValidTier reports whether name is a known location accuracy tier.
func IsValidTier(name string) bool {
	return tierSet[name]
}

// Spec is one stream kind, optionally parameterized. For transcription the
// param is a language code, for translation "src-to-tgt", for location_stream
// an accuracy tier name. Param is empty for unparameterized kinds.
type Spec struct {
	Type  Type
	Param string
}

func (s Spec) String() string {
	if s.Param == "" {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.Param
}

// HasParam reports whether this kind carries a parameter at all.
func (s Spec) HasParam() bool {
	return s.Param != ""
}

// ParseSpec parses a wire-form stream kind ("transcription:en-US",
// "button_press"). Unknown kinds and malformed parameters are rejected; a
// bad language or tier must never degrade into a generic subscription.
func ParseSpec(raw string) (Spec, error) {
	base := raw
	param := ""
	if i := strings.Index(raw, ":"); i >= 0 {
		base = raw[:i]
		param = raw[i+1:]
	}

	t := Type(base)
	if !baseTypes[t] {
		return Spec{}, fmt.Errorf("unknown stream kind %q", base)
	}

	switch t {
	case TypeTranscription:
		if param == "" || !langPattern.MatchString(param) {
			return Spec{}, fmt.Errorf("invalid transcription language %q", param)
		}
	case TypeTranslation:
		src, tgt, ok := strings.Cut(param, "-to-")
		if !ok || !langPattern.MatchString(src) || !langPattern.MatchString(tgt) {
			return Spec{}, fmt.Errorf("invalid translation pair %q", param)
		}
	case TypeLocationStream:
		// Bare location_stream means "whatever the session already runs";
		// a parameter must name a real tier.
		if param != "" && !tierSet[param] {
			return Spec{}, fmt.Errorf("unknown location tier %q", param)
		}
	default:
		if param != "" {
			return Spec{}, fmt.Errorf("stream kind %q does not take a parameter", base)
		}
	}

	return Spec{Type: t, Param: param}, nil
}

// Matches reports whether a subscription s covers the event kind ev.
// "all" and "*" subscriptions cover everything; parameterized subscriptions
// match only the identical parameter; a bare location_stream subscription
// covers any tiered location_stream event.
func (s Spec) Matches(ev Spec) bool {
	if s.Type == TypeAll || s.Type == TypeWildcard {
		return true
	}
	if s.Type != ev.Type {
		return false
	}
	if s.Param == "" && s.Type == TypeLocationStream {
		return true
	}
	return s.Param == ev.Param
}

// ParseSpecs parses a whole subscription list, failing on the first bad
// entry so a malformed update is rejected wholesale.
func ParseSpecs(raw []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(raw))
	for _, r := range raw {
		s, err := ParseSpec(r)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}
