package roster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perch-im/perch/chat"
	"github.com/perch-im/perch/entcache"
	"github.com/perch-im/perch/pkg/clock"
)

type mockClient struct {
	mu             sync.Mutex
	accounts       map[chat.AccountID]*chat.Account
	members        map[chat.GroupID]map[chat.AccountID]*chat.Member
	accountFetches int
	memberFetches  int
}

func newMockClient() *mockClient {
	return &mockClient{
		accounts: make(map[chat.AccountID]*chat.Account),
		members:  make(map[chat.GroupID]map[chat.AccountID]*chat.Member),
	}
}

func (m *mockClient) addMember(mem *chat.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[mem.GroupID] == nil {
		m.members[mem.GroupID] = make(map[chat.AccountID]*chat.Member)
	}
	m.members[mem.GroupID][mem.AccountID] = mem
}

func (m *mockClient) FetchAccount(ctx context.Context, id chat.AccountID) (*chat.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountFetches++
	if acct, ok := m.accounts[id]; ok {
		return acct, nil
	}
	return nil, entcache.ErrNotFound
}

func (m *mockClient) FetchMember(ctx context.Context, group chat.GroupID, id chat.AccountID) (*chat.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberFetches++
	if mem, ok := m.members[group][id]; ok {
		return mem, nil
	}
	return nil, entcache.ErrNotFound
}

func (m *mockClient) fetchCounts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountFetches, m.memberFetches
}

func testRoster(client Client, clk clock.Clock) *Roster {
	return New(client, Config{
		StaleAfter:  time.Hour,
		NegativeTTL: 300 * time.Second,
		Clock:       clk,
	})
}

func TestRosterAccountPullPath(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	client.accounts["123"] = &chat.Account{ID: "123", Handle: "robin"}
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	acct, err := r.Account(ctx, "123")
	require.NoError(t, err)
	assert.Equal("robin", acct.Handle)

	// second lookup is served locally
	_, err = r.Account(ctx, "123")
	assert.NoError(err)
	accountFetches, _ := client.fetchCounts()
	assert.Equal(1, accountFetches)

	// unknown account is fetched once, then suppressed
	_, err = r.Account(ctx, "999")
	assert.ErrorIs(err, entcache.ErrNotFound)
	_, err = r.Account(ctx, "999")
	assert.ErrorIs(err, entcache.ErrNotFound)
	accountFetches, _ = client.fetchCounts()
	assert.Equal(2, accountFetches)
}

func TestRosterMemberGroupIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	client.addMember(&chat.Member{GroupID: "g2", AccountID: "123", Nick: "rob"})
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	// 123 is not in g1; that mark must not leak into g2
	_, err := r.Member(ctx, "g1", "123")
	assert.ErrorIs(err, entcache.ErrNotFound)

	mem, err := r.Member(ctx, "g2", "123")
	require.NoError(t, err)
	assert.Equal("rob", mem.Nick)

	// g1 stays suppressed, g2 stays cached
	_, err = r.Member(ctx, "g1", "123")
	assert.ErrorIs(err, entcache.ErrNotFound)
	_, err = r.Member(ctx, "g2", "123")
	assert.NoError(err)
	_, memberFetches := client.fetchCounts()
	assert.Equal(2, memberFetches)
}

func TestRosterPushPath(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	acct, err := r.ApplyAccountUpdate([]byte(`{"id":"123","handle":"robin"}`))
	require.NoError(t, err)
	assert.Equal(chat.AccountID("123"), acct.ID)

	got, err := r.Account(ctx, "123")
	assert.NoError(err)
	assert.Equal(acct, got)

	mem, err := r.ApplyMemberAdd([]byte(`{"group_id":"g1","account_id":"123","nick":"rob","joined_at":"2024-03-01T12:00:00Z"}`))
	require.NoError(t, err)

	gotMem, err := r.Member(ctx, "g1", "123")
	assert.NoError(err)
	assert.Equal(mem, gotMem)

	// the push path never touched the API
	accountFetches, memberFetches := client.fetchCounts()
	assert.Equal(0, accountFetches)
	assert.Equal(0, memberFetches)

	_, err = r.ApplyAccountUpdate([]byte(`{"id":""}`))
	assert.Error(err)
	_, err = r.ApplyMemberAdd([]byte(`garbage`))
	assert.Error(err)
}

func TestRosterPushClearsNegative(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	// resolver learns the member is absent, then the gateway says otherwise
	_, err := r.Member(ctx, "g1", "123")
	assert.ErrorIs(err, entcache.ErrNotFound)

	_, err = r.ApplyMemberAdd([]byte(`{"group_id":"g1","account_id":"123","joined_at":"2024-03-01T12:00:00Z"}`))
	require.NoError(t, err)

	mem, err := r.Member(ctx, "g1", "123")
	assert.NoError(err)
	assert.Equal(chat.AccountID("123"), mem.AccountID)
	_, memberFetches := client.fetchCounts()
	assert.Equal(1, memberFetches)
}

func TestRosterMemberRemove(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	client.addMember(&chat.Member{GroupID: "g1", AccountID: "123"})
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	_, err := r.Member(ctx, "g1", "123")
	require.NoError(t, err)

	r.ApplyMemberRemove("g1", "123")
	// removing from a group we never saw is a no-op
	r.ApplyMemberRemove("never-seen", "123")

	_, err = r.Member(ctx, "g1", "123")
	assert.NoError(err)
	_, memberFetches := client.fetchCounts()
	assert.Equal(2, memberFetches)
}

func TestRosterSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clk := clock.NewMockClock(time.Unix(1000, 0))
	client := newMockClient()
	client.accounts["123"] = &chat.Account{ID: "123", Handle: "robin"}
	client.addMember(&chat.Member{GroupID: "g1", AccountID: "123"})
	r := testRoster(client, clk)

	_, err := r.Account(ctx, "123")
	require.NoError(t, err)
	_, err = r.Account(ctx, "999")
	assert.ErrorIs(err, entcache.ErrNotFound)
	_, err = r.Member(ctx, "g1", "123")
	require.NoError(t, err)
	_, err = r.Member(ctx, "g2", "456")
	assert.ErrorIs(err, entcache.ErrNotFound)

	// everything ages past both thresholds
	clk.Advance(2 * time.Hour)

	st := r.Sweep()
	assert.Equal(SweepStats{
		Accounts:         1,
		AccountsNegative: 1,
		Members:          1,
		MembersNegative:  1,
		Groups:           2,
	}, st)

	// second pass finds nothing left
	st = r.Sweep()
	assert.Equal(0, st.Accounts+st.AccountsNegative+st.Members+st.MembersNegative)
	assert.Equal(2, st.Groups)
}

func TestRosterDropGroup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := newMockClient()
	client.addMember(&chat.Member{GroupID: "g1", AccountID: "123"})
	r := testRoster(client, clock.NewMockClock(time.Unix(1000, 0)))

	_, err := r.Member(ctx, "g1", "123")
	require.NoError(t, err)
	assert.Equal(1, r.groups.Size())

	r.DropGroup("g1")
	assert.Equal(0, r.groups.Size())

	// a later lookup recreates the pair and refetches
	_, err = r.Member(ctx, "g1", "123")
	assert.NoError(err)
	_, memberFetches := client.fetchCounts()
	assert.Equal(2, memberFetches)
}

func TestRosterJanitorLoop(t *testing.T) {
	client := newMockClient()
	r := New(client, Config{
		StaleAfter:    time.Nanosecond,
		NegativeTTL:   time.Nanosecond,
		SweepInterval: time.Millisecond,
	})

	_, err := r.ApplyAccountUpdate([]byte(`{"id":"123","handle":"robin"}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go r.RunJanitor(ctx)

	assert.Eventually(t, func() bool {
		return r.accounts.Positive.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
}
