package roster

import (
	"fmt"

	"github.com/perch-im/perch/chat"
)

// The Apply* handlers are the push path: the gateway consumer calls them as
// events arrive, independent of any in-flight pulls for the same ids. Each
// writes the fresh entity into the positive cache and clears any negative
// mark, so an id the resolver previously learned was absent becomes
// resolvable the moment the platform says otherwise.

// ApplyAccountUpdate ingests an account payload (account-created or
// account-updated events) and returns the parsed account.
func (r *Roster) ApplyAccountUpdate(raw []byte) (*chat.Account, error) {
	acct, err := chat.ParseAccount(raw)
	if err != nil {
		return nil, fmt.Errorf("account update: %w", err)
	}
	return r.accounts.Ingest(acct.ID, acct), nil
}

// ApplyMemberAdd ingests a member payload (member-added or member-updated
// events), creating the group's caches if this is the first event seen for
// the group.
func (r *Roster) ApplyMemberAdd(raw []byte) (*chat.Member, error) {
	m, err := chat.ParseMember(raw)
	if err != nil {
		return nil, fmt.Errorf("member add: %w", err)
	}
	return r.memberCache(m.GroupID).Ingest(m.AccountID, m), nil
}

// ApplyMemberRemove drops the cached membership of id in group, for
// member-removed events. No-op if the group or member was never cached.
func (r *Roster) ApplyMemberRemove(group chat.GroupID, id chat.AccountID) {
	if c, ok := r.groups.Load(group); ok {
		c.Remove(id)
	}
}
