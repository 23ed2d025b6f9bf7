// Package middleware decorates a CheckpointStore with encryption, compression
// and PII masking.
package middleware

import "github.com/mahi1722/ticketflow/pkg/ports"

// Middleware allows wrapping a CheckpointStore to add behavior.
type Middleware func(ports.CheckpointStore) ports.CheckpointStore

// Chain applies middlewares so that the first one listed sees the plain state
// first on Save. Chain(s, Compress, Encrypt) compresses, then encrypts.
func Chain(store ports.CheckpointStore, mws ...Middleware) ports.CheckpointStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
