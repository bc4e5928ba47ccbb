package roster

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/perch-im/perch/chat"
	"github.com/perch-im/perch/entcache"
	"github.com/perch-im/perch/pkg/clock"
)

// Client is the REST-side collaborator the roster pulls entities through.
// Implementations return entcache.ErrNotFound (possibly wrapped) when the
// platform authoritatively reports the entity does not exist; any other error
// is treated as transient and is not cached. Timeouts and retries are the
// client's own policy.
type Client interface {
	FetchAccount(ctx context.Context, id chat.AccountID) (*chat.Account, error)
	FetchMember(ctx context.Context, group chat.GroupID, id chat.AccountID) (*chat.Member, error)
}

type Config struct {
	// StaleAfter is how long a positive entry may go unread before a sweep
	// evicts it.
	StaleAfter time.Duration
	// NegativeTTL is how long a not-found result suppresses refetching.
	NegativeTTL time.Duration
	// SweepInterval is the janitor's cadence.
	SweepInterval time.Duration

	// Clock can be overridden with a mock clock in tests
	Clock  clock.Clock
	Logger *slog.Logger
}

const (
	DefaultStaleAfter    = time.Hour
	DefaultNegativeTTL   = 5 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

type memberCache = entcache.Cache[chat.AccountID, *chat.Member]

// Roster is the entity-state layer shared by every execution path in the
// bot: command handlers pulling entities, the gateway consumer pushing them,
// and the janitor sweeping them.
type Roster struct {
	client Client
	logger *slog.Logger
	cfg    Config

	accounts *entcache.Cache[chat.AccountID, *chat.Account]
	groups   *xsync.MapOf[chat.GroupID, *memberCache]
}

func New(client Client, cfg Config) *Roster {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.NegativeTTL == 0 {
		cfg.NegativeTTL = DefaultNegativeTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Roster{
		client:   client,
		logger:   logger.With("system", "roster"),
		cfg:      cfg,
		accounts: entcache.New[chat.AccountID, *chat.Account]("accounts", cfg.NegativeTTL, cfg.Clock),
		groups:   xsync.NewMapOf[chat.GroupID, *memberCache](),
	}
}

// Account returns the account for id, fetching through the API client on a
// cache miss. Returns entcache.ErrNotFound when the account is known not to
// exist.
func (r *Roster) Account(ctx context.Context, id chat.AccountID) (*chat.Account, error) {
	return r.accounts.Resolve(ctx, id, r.client.FetchAccount)
}

// Member returns the membership of id in group, fetching through the API
// client on a cache miss. Each group has its own cache pair; negative state
// in one group never suppresses lookups in another.
func (r *Roster) Member(ctx context.Context, group chat.GroupID, id chat.AccountID) (*chat.Member, error) {
	fetch := func(ctx context.Context, id chat.AccountID) (*chat.Member, error) {
		return r.client.FetchMember(ctx, group, id)
	}
	return r.memberCache(group).Resolve(ctx, id, fetch)
}

// DropGroup tears down the membership caches for group, eg when the bot is
// removed from it. A concurrent Member call either resolves against the old
// pair or recreates a fresh one.
func (r *Roster) DropGroup(group chat.GroupID) {
	r.groups.Delete(group)
}

func (r *Roster) memberCache(group chat.GroupID) *memberCache {
	if c, ok := r.groups.Load(group); ok {
		return c
	}
	// metrics label stays the constant "members" across groups
	fresh := entcache.New[chat.AccountID, *chat.Member]("members", r.cfg.NegativeTTL, r.cfg.Clock)
	c, _ := r.groups.LoadOrStore(group, fresh)
	return c
}
