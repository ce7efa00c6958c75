// Package plans gates premium actions and monthly call volume by a
// project's subscription plan.
//
// Plan resolution is deliberately forgiving: a primary project is always
// commercial, an unknown stored plan falls back to the configured default,
// and a metering outage counts as zero usage. The only hard rejection is
// LimitExceededError, returned when a counted project crosses its monthly
// ceiling.
package plans
