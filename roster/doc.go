/*
Package roster maintains the bot's local view of accounts and group
memberships on top of the entcache machinery.

A Roster owns one account cache pair plus one membership cache pair per group
the bot can see. Group pairs are created lazily on first use and torn down
with DropGroup when the bot leaves, so each group's lock and lifecycle stay
independent: member traffic for one group never contends with another, and
never with account traffic.

The pull path (Account, Member) resolves through the configured API client;
the push path (the Apply* handlers) is driven by the gateway consumer as
events arrive. RunJanitor keeps both sides of every pair bounded.
*/
package roster
