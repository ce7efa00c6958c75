// Package teams expands team-tier access entries into CRUD-scope buckets.
//
// A project's access list grants scopes either directly to role IDs or to
// whole teams via a tier entry (team_read, team_write, team_admin). Tiers
// are strictly additive: read ⊂ write ⊂ admin. Expansion produces an
// AccessBuckets value, the uniform structure the enforcement layer checks
// identity roles against regardless of whether a grant was direct or
// delegated.
package teams
