/*
Package session serializes access to workflow instances.

Runs for the same instance ID are queued behind a per-instance mutex. When a
distributed locker is configured, the same guarantee holds across replicas
that share a checkpoint store.
*/
package session
