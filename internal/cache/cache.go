// Package cache implements the retrieval result cache: an in-process LRU
// (L1) in front of redis (L2), with the vector store as the source of truth
// behind both.
//
// Entries hold passage identifiers and scores, never content. The caller
// re-hydrates passages from the store on every hit and re-applies the
// filter predicate, so a passage whose status changed after the entry was
// written is filtered out rather than served stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexviet/bidrag/internal/vectorstore"
)

// Cache layers reported on hits.
const (
	LayerL1 = "L1"
	LayerL2 = "L2"
)

const (
	entryKeyPrefix = "bidrag:cache:"
	docKeyPrefix   = "bidrag:doc:"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Entry is a cached retrieval result: ordered passage identifiers with
// their retrieval scores, plus the referenced document IDs for
// invalidation.
type Entry struct {
	IDs       []string  `json:"ids"`
	Scores    []float32 `json:"scores"`
	DocIDs    []string  `json:"doc_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// FromScored builds an entry from a retrieval result.
func FromScored(passages []vectorstore.ScoredPassage) Entry {
	entry := Entry{
		IDs:       make([]string, len(passages)),
		Scores:    make([]float32, len(passages)),
		CreatedAt: time.Now().UTC(),
	}
	seen := make(map[string]bool)
	for i, p := range passages {
		entry.IDs[i] = p.ID
		entry.Scores[i] = p.Score
		if p.DocumentID != "" && !seen[p.DocumentID] {
			seen[p.DocumentID] = true
			entry.DocIDs = append(entry.DocIDs, p.DocumentID)
		}
	}
	return entry
}

// Tier is the layered cache. L1 is a bounded in-process LRU whose internal
// lock covers only pointer manipulation; L2 is redis with TTL eviction.
// Redis failures in Lookup and Store degrade to a miss with a warning;
// InvalidateDocument returns them as errors.
type Tier struct {
	l1     *lru.Cache[string, Entry]
	rdb    *redis.Client
	logger *zap.Logger
}

// New creates the cache tier. rdb may be nil to run L1-only (tests).
func New(l1Capacity int, rdb *redis.Client, logger *zap.Logger) (*Tier, error) {
	if l1Capacity <= 0 {
		return nil, ErrInvalidConfig
	}
	l1, err := lru.New[string, Entry](l1Capacity)
	if err != nil {
		return nil, err
	}
	return &Tier{l1: l1, rdb: rdb, logger: logger}, nil
}

// Lookup checks L1 then L2. An L2 hit is promoted into L1. The returned
// layer is LayerL1, LayerL2, or "" on miss.
func (t *Tier) Lookup(ctx context.Context, fingerprint string) (*Entry, string) {
	if entry, ok := t.l1.Get(fingerprint); ok {
		hitsTotal.WithLabelValues(LayerL1).Inc()
		return &entry, LayerL1
	}

	if t.rdb != nil {
		raw, err := t.rdb.Get(ctx, entryKeyPrefix+fingerprint).Result()
		switch {
		case err == nil:
			var entry Entry
			if uerr := json.Unmarshal([]byte(raw), &entry); uerr != nil {
				t.logger.Warn("corrupt cache entry dropped",
					zap.String("fingerprint", fingerprint), zap.Error(uerr))
				t.rdb.Del(ctx, entryKeyPrefix+fingerprint)
				break
			}
			t.l1.Add(fingerprint, entry)
			hitsTotal.WithLabelValues(LayerL2).Inc()
			return &entry, LayerL2
		case errors.Is(err, redis.Nil):
			// miss
		default:
			t.logger.Warn("L2 lookup failed, treating as miss", zap.Error(err))
		}
	}

	missesTotal.Inc()
	return nil, ""
}

// Store writes the entry to L2 with the given TTL, indexes it under each
// referenced document for invalidation, then populates L1. Write order is
// L2-then-L1 so a failed L2 write never leaves L1 claiming an entry the
// shared tier does not have longer than one L1 eviction cycle.
func (t *Tier) Store(ctx context.Context, fingerprint string, entry Entry, ttl time.Duration) {
	if t.rdb != nil {
		raw, err := json.Marshal(entry)
		if err != nil {
			t.logger.Warn("cache entry marshal failed", zap.Error(err))
			return
		}
		pipe := t.rdb.TxPipeline()
		pipe.Set(ctx, entryKeyPrefix+fingerprint, raw, ttl)
		for _, docID := range entry.DocIDs {
			docKey := docKeyPrefix + docID
			pipe.SAdd(ctx, docKey, entryKeyPrefix+fingerprint)
			// Index outlives its newest entry; stale members are ignored
			// on invalidation.
			pipe.Expire(ctx, docKey, ttl*2)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			t.logger.Warn("L2 store failed", zap.Error(err))
			return
		}
	}
	t.l1.Add(fingerprint, entry)
}

// InvalidateDocument drops every cached entry referencing the document from
// both layers. Conservative: entries are removed whole, not rewritten.
func (t *Tier) InvalidateDocument(ctx context.Context, documentID string) error {
	if t.rdb != nil {
		docKey := docKeyPrefix + documentID
		keys, err := t.rdb.SMembers(ctx, docKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if len(keys) > 0 {
			if err := t.rdb.Del(ctx, append(keys, docKey)...).Err(); err != nil {
				return err
			}
		} else {
			t.rdb.Del(ctx, docKey)
		}
	}

	for _, key := range t.l1.Keys() {
		entry, ok := t.l1.Peek(key)
		if !ok {
			continue
		}
		for _, docID := range entry.DocIDs {
			if docID == documentID {
				t.l1.Remove(key)
				break
			}
		}
	}

	invalidationsTotal.Inc()
	return nil
}

// Purge empties L1. L2 entries age out by TTL.
func (t *Tier) Purge() {
	t.l1.Purge()
}
