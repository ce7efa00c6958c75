// Package access renders the platform's access decisions.
//
// # Overview
//
// Every enforcement point routes through Engine.HasAccess. The engine
// evaluates a fixed chain of rules in strict precedence order and stops at
// the first rule that decides:
//
//  1. admin key: the operator's pre-shared secret allows everything
//  2. remote permission: a federated identity is authorized solely by its
//     remote claim, mapped directly to allow or deny
//  3. global routes: project creation, informational endpoints, and the
//     public API spec for requests with no project context
//  4. public project routes: the analytics report (token required) and the
//     current deployment tag (anonymous allowed)
//  5. storage signing: file-signing sub-paths are re-targeted at their
//     submission and evaluation continues
//  6. owner: the primary project's owner is always allowed, with writes
//     flagged for explicit owner assignment
//  7. default: deny, carrying the merged ACL buckets and, for submission
//     reads on group-capable plans, the group visibility filter
//
// A deny from the default rule is provisional: the enforcement layer runs
// the role-membership check against Decision.Buckets and may still allow.
//
// # Failure semantics
//
// Project and primary lookups run lazily, on the first rule that needs
// them; an admin key or a remote claim decides without touching the store.
// Where a lookup does run it fails closed: an error aborts the decision and
// the caller must deny. Group-scope resolution fails open to "no extra
// narrowing" because it restricts reads rather than granting.
//
// # Related Packages
//
//   - pkg/teams: ACL bucket expansion and the membership check
//   - pkg/plans: plan resolution and gating
//   - pkg/groups: submission group scoping
//   - pkg/middleware: HTTP enforcement built on this engine
package access
