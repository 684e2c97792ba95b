package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks persisted data that cannot be decoded into a profile.
var ErrMalformed = errors.New("malformed profile data")

// Encode serialises a profile. Timestamps are written as RFC3339Nano so a
// save/load cycle keeps their exact value.
func Encode(p *UserProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode profile: nil profile")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return data, nil
}

// Decode parses persisted profile data and fills in collections that older
// records may have left out.
func Decode(data []byte) (*UserProfile, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("decode profile: %w: empty document", ErrMalformed)
	}
	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("decode profile: %w: missing id", ErrMalformed)
	}
	if p.Preferences == nil {
		p.Preferences = map[string]any{}
	}
	if p.ConversationHistory == nil {
		p.ConversationHistory = []ConversationSummary{}
	}
	if p.Memories == nil {
		p.Memories = []Memory{}
	}
	if p.Personality.Interests == nil {
		p.Personality.Interests = []string{}
	}
	return &p, nil
}
