// Package mirror keeps annotation stores in different processes in sync
// through Redis.
//
// Push stores the committed state under a key and publishes the writer's
// origin on "<key>:updates". Pull adopts the stored state by clearing the
// local store and restoring from it. Run subscribes to updates from other
// origins and pushes local changes, rate limited, until its context ends.
package mirror
