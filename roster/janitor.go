package roster

import (
	"context"
	"time"

	"github.com/perch-im/perch/chat"
)

// SweepStats reports what one maintenance pass removed.
type SweepStats struct {
	Accounts         int
	AccountsNegative int
	Members          int
	MembersNegative  int
	Groups           int
}

// Sweep runs one maintenance pass over the account caches and every group's
// membership caches, using the configured thresholds. It never errors and may
// run concurrently with any pull or push traffic.
func (r *Roster) Sweep() SweepStats {
	var st SweepStats
	st.Accounts, st.AccountsNegative = r.accounts.Sweep(r.cfg.StaleAfter, r.cfg.NegativeTTL)
	r.groups.Range(func(group chat.GroupID, c *memberCache) bool {
		p, n := c.Sweep(r.cfg.StaleAfter, r.cfg.NegativeTTL)
		st.Members += p
		st.MembersNegative += n
		st.Groups++
		return true
	})
	r.logger.Debug("cache sweep complete",
		"accounts_removed", st.Accounts,
		"accounts_negative_removed", st.AccountsNegative,
		"members_removed", st.Members,
		"members_negative_removed", st.MembersNegative,
		"groups", st.Groups,
	)
	return st
}

// RunJanitor sweeps on the configured interval until ctx is done. Meant to be
// started in its own goroutine alongside the gateway consumer.
func (r *Roster) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
