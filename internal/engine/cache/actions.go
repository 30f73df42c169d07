package cache

import (
	"encoding/json"
	"slices"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
)

// persistVersion is bumped whenever the persisted layout changes; older payloads are discarded.
const persistVersion = 1

// entryID is one (key, distinguishing value) pair of the cache.
type entryID struct {
	Key    string
	Inputs uint64
}

// Entry is a recorded action together with the canonical form of its key.
type Entry struct {
	Key    string        `json:"key"`
	Action domain.Action `json:"action"`
}

type persistedCache struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// ActionCache maps keys to the actions recorded under them.
//
// Capacity bounds the number of (key, input set) pairs across all keys. Entries are only
// ever peeked, never promoted, so the ring evicts in insertion order.
type ActionCache struct {
	ring  *simplelru.LRU[entryID, domain.Action]
	byKey map[string][]entryID
	dirty bool
}

// NewActionCache returns an empty cache holding at most capacity pairs.
func NewActionCache(capacity int) (*ActionCache, error) {
	c := &ActionCache{byKey: make(map[string][]entryID)}
	ring, err := simplelru.NewLRU[entryID, domain.Action](capacity, c.onEvict)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidCapacity.Error()), "capacity", capacity)
	}
	c.ring = ring
	return c, nil
}

func (c *ActionCache) onEvict(id entryID, _ domain.Action) {
	ids := slices.DeleteFunc(c.byKey[id.Key], func(other entryID) bool { return other == id })
	if len(ids) == 0 {
		delete(c.byKey, id.Key)
		return
	}
	c.byKey[id.Key] = ids
}

// Lookup returns the most recently recorded action under key that valid accepts.
func (c *ActionCache) Lookup(key domain.Key, valid func(domain.Action) bool) (domain.Action, bool) {
	ids := c.byKey[key.String()]
	for i := len(ids) - 1; i >= 0; i-- {
		action, ok := c.ring.Peek(ids[i])
		if ok && valid(action) {
			return action, true
		}
	}
	return domain.Action{}, false
}

// Record stores action under key. Recording a pair that is already present replaces it and
// makes it the newest entry. When the cache is full the oldest pair is evicted.
func (c *ActionCache) Record(key domain.Key, action domain.Action) {
	c.record(key.String(), action)
}

func (c *ActionCache) record(key string, action domain.Action) {
	id := entryID{Key: key, Inputs: action.InputsDigest()}
	c.ring.Remove(id)
	c.ring.Add(id, action)
	c.byKey[key] = append(c.byKey[key], id)
	c.dirty = true
}

// Len returns the number of recorded pairs.
func (c *ActionCache) Len() int {
	return c.ring.Len()
}

// Entries returns every recorded action, oldest first.
func (c *ActionCache) Entries() []Entry {
	ids := c.ring.Keys()
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if action, ok := c.ring.Peek(id); ok {
			entries = append(entries, Entry{Key: id.Key, Action: action})
		}
	}
	return entries
}

// Load replaces the cache content with the one persisted in store.
// A missing or outdated payload leaves the cache empty.
func (c *ActionCache) Load(store ports.ActionStore) error {
	data, err := store.Get(domain.ActionsKey)
	if err != nil {
		return err
	}

	c.ring.Purge()
	c.dirty = false
	if data == nil {
		return nil
	}

	var payload persistedCache
	if err := json.Unmarshal(data, &payload); err != nil {
		return zerr.Wrap(err, domain.ErrCacheDecodeFailed.Error())
	}
	if payload.Version != persistVersion {
		return nil
	}

	for _, e := range payload.Entries {
		c.record(e.Key, e.Action)
	}
	c.dirty = false
	return nil
}

// Save persists the cache to store in insertion order. It does nothing when no action was
// recorded since the last Load or Save.
func (c *ActionCache) Save(store ports.ActionStore) error {
	if !c.dirty {
		return nil
	}

	data, err := json.Marshal(persistedCache{Version: persistVersion, Entries: c.Entries()})
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheEncodeFailed.Error())
	}
	if err := store.Put(domain.ActionsKey, data); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
