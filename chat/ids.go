package chat

import (
	"fmt"
	"strings"
)

// AccountID is a platform-assigned stable identifier for an account, unique
// across the platform. Treated as opaque; the platform currently issues
// decimal snowflakes but that is not relied on anywhere.
type AccountID string

// GroupID is a platform-assigned stable identifier for a group.
type GroupID string

func ParseAccountID(raw string) (AccountID, error) {
	if err := checkID(raw); err != nil {
		return "", fmt.Errorf("invalid account id: %w", err)
	}
	return AccountID(raw), nil
}

func ParseGroupID(raw string) (GroupID, error) {
	if err := checkID(raw); err != nil {
		return "", fmt.Errorf("invalid group id: %w", err)
	}
	return GroupID(raw), nil
}

func (a AccountID) String() string {
	return string(a)
}

func (g GroupID) String() string {
	return string(g)
}

const maxIDLen = 64

func checkID(raw string) error {
	if raw == "" {
		return fmt.Errorf("is empty")
	}
	if len(raw) > maxIDLen {
		return fmt.Errorf("is too long (%d chars)", len(raw))
	}
	if strings.ContainsFunc(raw, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-' || r == '_')
	}) {
		return fmt.Errorf("contains disallowed characters")
	}
	return nil
}
