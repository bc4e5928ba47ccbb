package entcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perch_entcache_resolves",
	Help: "Entity cache resolve calls, by outcome",
}, []string{"cache", "status"})

var resolvesCoalesced = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perch_entcache_resolves_coalesced",
	Help: "Resolve calls that waited on another in-flight fetch for the same id",
}, []string{"cache"})

var fetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perch_entcache_fetches",
	Help: "Remote fetches issued by the resolver, by outcome",
}, []string{"cache", "status"})

var ingests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perch_entcache_ingests",
	Help: "Push-path entity writes",
}, []string{"cache"})

var evictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perch_entcache_evictions",
	Help: "Entries removed by sweeps",
}, []string{"cache", "store"})
