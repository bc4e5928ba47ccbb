package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Member is an account's membership in one group. Memberships are scoped to
// their group; the same account can be a member of many groups with distinct
// nicks and roles.
type Member struct {
	GroupID   GroupID   `json:"group_id"`
	AccountID AccountID `json:"account_id"`
	Nick      string    `json:"nick,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ParseMember constructs a Member from a raw payload (eg a member-added
// gateway event), validating both identifiers.
func ParseMember(raw []byte) (*Member, error) {
	var m Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing member payload: %w", err)
	}
	if _, err := ParseGroupID(string(m.GroupID)); err != nil {
		return nil, fmt.Errorf("parsing member payload: %w", err)
	}
	if _, err := ParseAccountID(string(m.AccountID)); err != nil {
		return nil, fmt.Errorf("parsing member payload: %w", err)
	}
	return &m, nil
}
