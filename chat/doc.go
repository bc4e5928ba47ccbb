/*
Package chat contains the platform's identifier syntax and the domain objects
the bot keeps local copies of: accounts, and per-group memberships.

Identifiers are string types with Parse constructors; always parse untrusted
input rather than casting. The ParseAccount/ParseMember functions construct
domain values from raw gateway payloads and are the constructor collaborators
used by the roster's push path.
*/
package chat
