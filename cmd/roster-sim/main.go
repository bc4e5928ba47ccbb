// roster-sim is an informal load-simulation tool for the roster cache layer:
// it hammers an in-process Roster with concurrent lookups, push events, and
// the janitor, against a fake API with configurable latency and miss rate,
// then dumps the cache counters.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/perch-im/perch/chat"
	"github.com/perch-im/perch/entcache"
	"github.com/perch-im/perch/roster"
)

func main() {
	app := cli.App{
		Name:  "roster-sim",
		Usage: "informal load-simulation tool for the roster cache layer",
	}
	app.Commands = []*cli.Command{
		&cli.Command{
			Name:   "simulate",
			Usage:  "run concurrent resolvers, a push feed, and the janitor against a fake API",
			Action: runSimulate,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "workers",
					Usage: "concurrent resolver goroutines",
					Value: 8,
				},
				&cli.IntFlag{
					Name:  "accounts",
					Usage: "size of the simulated account space",
					Value: 5000,
				},
				&cli.IntFlag{
					Name:  "groups",
					Usage: "number of simulated groups",
					Value: 50,
				},
				&cli.Float64Flag{
					Name:  "missing",
					Usage: "fraction of ids the fake API reports as not found",
					Value: 0.1,
				},
				&cli.DurationFlag{
					Name:  "latency",
					Usage: "simulated remote fetch latency",
					Value: 2 * time.Millisecond,
				},
				&cli.DurationFlag{
					Name:  "duration",
					Usage: "how long to run",
					Value: 10 * time.Second,
				},
				&cli.DurationFlag{
					Name:  "sweep-interval",
					Usage: "janitor cadence",
					Value: time.Second,
				},
			},
		},
	}
	app.RunAndExitOnError()
}

// simClient fakes the platform REST API. Ids are decimal; the lowest
// missing*accounts of them "do not exist".
type simClient struct {
	latency  time.Duration
	accounts int
	missing  float64
}

func (c *simClient) isMissing(id chat.AccountID) bool {
	n, err := strconv.Atoi(id.String())
	if err != nil {
		return true
	}
	return float64(n) < c.missing*float64(c.accounts)
}

func (c *simClient) FetchAccount(ctx context.Context, id chat.AccountID) (*chat.Account, error) {
	select {
	case <-time.After(c.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.isMissing(id) {
		return nil, entcache.ErrNotFound
	}
	return &chat.Account{ID: id, Handle: "user-" + id.String()}, nil
}

func (c *simClient) FetchMember(ctx context.Context, group chat.GroupID, id chat.AccountID) (*chat.Member, error) {
	select {
	case <-time.After(c.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.isMissing(id) {
		return nil, entcache.ErrNotFound
	}
	return &chat.Member{GroupID: group, AccountID: id, JoinedAt: time.Now()}, nil
}

func runSimulate(cctx *cli.Context) error {
	logger := slog.Default().With("system", "roster-sim")

	client := &simClient{
		latency:  cctx.Duration("latency"),
		accounts: cctx.Int("accounts"),
		missing:  cctx.Float64("missing"),
	}
	r := roster.New(client, roster.Config{
		StaleAfter:    30 * time.Second,
		NegativeTTL:   5 * time.Second,
		SweepInterval: cctx.Duration("sweep-interval"),
		Logger:        logger,
	})

	ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("duration"))
	defer cancel()

	numAccounts := cctx.Int("accounts")
	numGroups := cctx.Int("groups")
	var ops atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cctx.Int("workers"); i++ {
		eg.Go(func() error {
			for ctx.Err() == nil {
				id := chat.AccountID(strconv.Itoa(rand.Intn(numAccounts)))
				var err error
				if rand.Intn(2) == 0 {
					_, err = r.Account(ctx, id)
				} else {
					group := chat.GroupID("g" + strconv.Itoa(rand.Intn(numGroups)))
					_, err = r.Member(ctx, group, id)
				}
				if err != nil && !errors.Is(err, entcache.ErrNotFound) && ctx.Err() == nil {
					return fmt.Errorf("resolve failed: %w", err)
				}
				ops.Add(1)
			}
			return nil
		})
	}

	// push feed: unsolicited account and member events, including for ids
	// the API claims are missing (exercises the negative-clear path)
	eg.Go(func() error {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n := rand.Intn(numAccounts)
				if rand.Intn(2) == 0 {
					raw := fmt.Sprintf(`{"id":"%d","handle":"user-%d"}`, n, n)
					if _, err := r.ApplyAccountUpdate([]byte(raw)); err != nil {
						return err
					}
				} else {
					g := rand.Intn(numGroups)
					raw := fmt.Sprintf(`{"group_id":"g%d","account_id":"%d","joined_at":%q}`, g, n, time.Now().Format(time.RFC3339))
					if _, err := r.ApplyMemberAdd([]byte(raw)); err != nil {
						return err
					}
				}
			}
		}
	})

	eg.Go(func() error {
		r.RunJanitor(ctx)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	logger.Info("simulation complete", "resolves", ops.Load())
	return dumpMetrics()
}

func dumpMetrics() error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "perch_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(os.Stdout, "%s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}
