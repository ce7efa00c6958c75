// Package middleware wires the access engine into the HTTP request path.
//
// # Middleware ordering
//
// Order matters. The chain on protected routes must be:
//
//	router.Use(identity.Handler)   // 1. claims → access.Identity, request ID
//	router.Use(enforcer.Handler)   // 2. decision, membership check, plan gate, metering
//
// IdentityMiddleware must run first: the Enforcer reads the identity from
// the context and treats its absence as anonymous. The Enforcer combines
// four steps that must stay in this order:
//
//  1. engine decision (fail-closed on lookup errors)
//  2. bucket membership check, only when the engine returned a provisional
//     deny with buckets: first against the identity's role claims, then by
//     resolving granted team IDs through the team store
//  3. plan gating (premium actions, monthly call ceiling)
//  4. async call metering, only for requests that got this far, so denied
//     requests never consume quota
//
// Denials and admin-key allows are recorded through pkg/audit
// asynchronously; audit never blocks or fails a request.
package middleware
