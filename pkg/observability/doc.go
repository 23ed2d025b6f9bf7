/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured audit logs.

Both are plain domain.LifecycleHooks values, so they compose with Merge and
any hooks the caller registers.
*/
package observability
