// Package vectorstore holds the passage data model, the metadata filter with
// its canonical form, and the Store interface with its pgvector-backed
// implementation.
//
// The store is the source of truth for passages and embeddings; the rest of
// the pipeline holds passages by identifier and re-hydrates content through
// Fetch. The filter's Canonical form feeds the cache fingerprint, and its
// Matches predicate re-applies status filtering on cache hits.
package vectorstore
