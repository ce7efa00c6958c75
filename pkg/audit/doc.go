// Package audit records access-control audit events.
//
// Two classes of decision are audited: denials (after the membership check,
// so only real rejections are recorded) and admin-key allows, since the
// admin key bypasses every other rule. Events fan out to the structured log
// and, when configured, a Postgres table. Recording is fire-and-forget and
// never fails the request being audited.
package audit
