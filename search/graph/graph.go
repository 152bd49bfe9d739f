// Package graph adapts an embedded badger key-value store as the temporal
// knowledge-graph backend: memories are stored as time-ordered episodes
// with a term index, and search blends term overlap with recency. The
// adapter is a thin retrieval client; it does not try to be a graph
// engine.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/scope"
)

// Key layout. All keys are namespaced by user id first, so every scan is a
// single-user prefix iteration.
//
//	ep|<uid>|<id>            -> episode JSON
//	ts|<uid>|<revts>|<id>    -> <id>        (recency listing, newest first)
//	tok|<uid>|<token>|<id>   -> nil         (term index)
const (
	prefixEpisode = "ep|"
	prefixRecency = "ts|"
	prefixToken   = "tok|"
)

// Scoring weights: term overlap dominates, recency breaks near-ties.
const (
	termWeight    = 0.8
	recencyWeight = 0.2

	// recencyHalfLife is the age at which the recency component halves.
	recencyHalfLife = 7 * 24 * time.Hour
)

// Options configures the store.
type Options struct {
	// Dir is the on-disk location. Empty selects in-memory operation.
	Dir string
}

// Store implements search.Searcher, search.Persister, and
// search.RecentLister over badger.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
}

type episode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AppID     string    `json:"app_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Open opens (or creates) the episode store.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.Dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.Named("graph"),
		now:    time.Now,
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write stores a memory as a new episode. Idempotent per (userID, text):
// the episode id is derived from the normalized text hash, and a repeat
// write of an existing episode is a no-op.
func (s *Store) Write(ctx context.Context, userID, appID, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := fmt.Sprintf("ep-%016x", core.TextHash(text))
	epKey := []byte(prefixEpisode + userID + "|" + id)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(epKey); err == nil {
			return nil // already stored
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		now := s.now().UTC()
		ep := episode{
			ID:        id,
			UserID:    userID,
			AppID:     appID,
			Text:      text,
			CreatedAt: now,
		}
		raw, err := json.Marshal(ep)
		if err != nil {
			return err
		}
		if err := txn.Set(epKey, raw); err != nil {
			return err
		}

		tsKey := []byte(prefixRecency + userID + "|" + reverseTimestamp(now) + "|" + id)
		if err := txn.Set(tsKey, []byte(id)); err != nil {
			return err
		}

		for _, token := range tokenize(text) {
			tokKey := []byte(prefixToken + userID + "|" + token + "|" + id)
			if err := txn.Set(tokKey, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("write episode: %w", err)
	}
	return id, nil
}

// Search retrieves episodes matching the query terms, scored by term
// overlap and recency. key is a graph isolation key (see scope.Resolve);
// empty falls open to the whole account for userID.
func (s *Store) Search(ctx context.Context, userID, key, query string, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	uid, app := userID, ""
	if key != "" {
		uid, app = scope.ParseGraphKey(key)
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	matches := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, term := range terms {
			if err := ctx.Err(); err != nil {
				return err
			}
			prefix := []byte(prefixToken + uid + "|" + term + "|")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().Key()
				id := string(k[len(prefix):])
				matches[id]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan term index: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	now := s.now()
	var items []core.MemoryItem
	err = s.db.View(func(txn *badger.Txn) error {
		for id, hits := range matches {
			if err := ctx.Err(); err != nil {
				return err
			}
			ep, err := s.loadEpisode(txn, uid, id)
			if err != nil {
				s.logger.Warn("orphaned term index entry",
					zap.String("user_id", uid),
					zap.String("episode_id", id),
					zap.Error(err))
				continue
			}
			if app != "" && ep.AppID != app {
				continue
			}

			overlap := float64(hits) / float64(len(terms))
			score := termWeight*overlap + recencyWeight*recencyScore(now.Sub(ep.CreatedAt))
			items = append(items, core.MemoryItem{
				ID:          ep.ID,
				OwnerUserID: ep.UserID,
				OriginAppID: ep.AppID,
				Text:        ep.Text,
				CreatedAt:   ep.CreatedAt,
				Source:      core.SourceGraph,
				Relevance:   score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load episodes: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Relevance != items[j].Relevance {
			return items[i].Relevance > items[j].Relevance
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	s.logger.Debug("graph search",
		zap.String("user_id", uid),
		zap.String("app_id", app),
		zap.Int("results", len(items)))
	return items, nil
}

// Recent returns the user's newest episodes, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	var items []core.MemoryItem
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecency + userID + "|")
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(items) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var id string
			if err := it.Item().Value(func(v []byte) error {
				id = string(v)
				return nil
			}); err != nil {
				return err
			}
			ep, err := s.loadEpisode(txn, userID, id)
			if err != nil {
				continue
			}
			items = append(items, core.MemoryItem{
				ID:          ep.ID,
				OwnerUserID: ep.UserID,
				OriginAppID: ep.AppID,
				Text:        ep.Text,
				CreatedAt:   ep.CreatedAt,
				Source:      core.SourceGraph,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list recent episodes: %w", err)
	}
	return items, nil
}

func (s *Store) loadEpisode(txn *badger.Txn, userID, id string) (*episode, error) {
	item, err := txn.Get([]byte(prefixEpisode + userID + "|" + id))
	if err != nil {
		return nil, err
	}
	var ep episode
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &ep)
	}); err != nil {
		return nil, err
	}
	return &ep, nil
}

// reverseTimestamp encodes t so lexicographic order is newest-first.
func reverseTimestamp(t time.Time) string {
	return fmt.Sprintf("%020d", math.MaxInt64-t.UnixNano())
}

// recencyScore maps an age to (0, 1], halving every recencyHalfLife.
func recencyScore(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(recencyHalfLife))
}

// stopwords excluded from the term index; they match everything and rank
// nothing.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"i": {}, "me": {}, "my": {}, "you": {}, "your": {}, "we": {},
	"is": {}, "am": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {},
	"it": {}, "this": {}, "that": {}, "what": {}, "did": {}, "do": {},
	"say": {}, "said": {}, "about": {}, "have": {}, "has": {},
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
