// Package groups resolves the group IDs that scope an identity's
// submission visibility within a project.
//
// Group membership is derived, never stored: forms may carry a group
// action that maps a user field, and the submissions of those forms are the
// membership records. Resolution runs as a single server-side aggregation
// and only for plans that support group permissioning. Failures degrade to
// applying no restriction; scoping narrows reads and never grants access,
// so the degradation cannot widen what a decision allows.
package groups
