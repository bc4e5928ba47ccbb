/*
Package entcache implements the generic cache-aside machinery behind the bot's
local entity state.

Each entity kind gets a Cache, which pairs a positive Store (id to last known
value, aged out by time since last access) with a NegativeStore (id to "the
remote said this does not exist", suppressing repeat lookups until a TTL
elapses). Resolve is the pull path: check positive, check negative, fall back
to a remote fetch, and write the outcome back. Ingest is the push path, called
by the gateway consumer whenever fresh entity data arrives unsolicited. Sweep
bounds memory in both stores; callers are expected to run it periodically.

The caches are eventually consistent with the remote system and hold no state
across restarts. Remote fetches always run outside the store locks, so a slow
round-trip never stalls unrelated cache traffic; concurrent Resolve calls for
one id are coalesced behind a single fetch.
*/
package entcache
