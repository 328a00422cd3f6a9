// Package session persists per-connection render state across short
// disconnects.
//
// A Snapshot carries everything the diff baseline needs: the committed
// root tree, every live component instance with its id and tree, and
// the diff sequence number. A client reconnecting within the resume
// window gets its registry and baseline restored and continues with
// diffs instead of a full re-mount.
//
// Two SnapshotStore backends ship here: MemoryStore for single-server
// deployments and S3Store for fleets behind a load balancer.
package session
