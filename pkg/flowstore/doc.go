/*
Package flowstore implements the Flow Store consumed by the presentation channels
and the admin surfaces.

It wraps a ports.FlowRepository with the store semantics: id and timestamp
assignment, versioning, validation on activation and single-active enforcement.
Writes to one flow are serialized with per-flow locks, optionally backed by a
distributed locker when several replicas share a repository.
*/
package flowstore
