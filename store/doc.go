// Package store implements the hierarchical annotation store: the owner of
// every annotation of a layer, the mutation engine that keeps collection
// hierarchies consistent, and the reference-counted handles through which
// callers observe records.
//
// A Store is single-owner. All operations run synchronously and dispatch
// their signals before returning; listeners must not mutate the store they
// observe. Such calls fail with ErrReentrantMutation.
//
// Records returned by the store must be treated as read-only. Mutations go
// through Add, Update and Delete, which replace records by value.
package store
