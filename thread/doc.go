// Package thread implements the flat, append-only message store that backs
// all agent conversations, plus the persistence hook contract invoked around
// orchestrated runs.
//
// The store owns no behavior beyond storage and filtered views: every
// conversation between a (sender, recipient) pair is a derived sub-sequence
// of the single global log, never an independent copy. Insertion order in
// the store is the source of truth for global ordering; dialect-specific
// reordering happens only in views handed to a model.
package thread
