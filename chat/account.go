package chat

import (
	"encoding/json"
	"fmt"
)

// Account is the platform-wide view of a user, as delivered by both the REST
// API and gateway push events.
type Account struct {
	ID          AccountID `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bot         bool      `json:"bot,omitempty"`
}

// ParseAccount constructs an Account from a raw payload, validating the
// identifier.
func ParseAccount(raw []byte) (*Account, error) {
	var acct Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("parsing account payload: %w", err)
	}
	if _, err := ParseAccountID(string(acct.ID)); err != nil {
		return nil, fmt.Errorf("parsing account payload: %w", err)
	}
	if acct.Handle == "" {
		return nil, fmt.Errorf("parsing account payload: missing handle")
	}
	return &acct, nil
}
