package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fruitsalade/webdrive/pkg/models"
)

// Overlay is the client-side star set. It is kept apart from fetched records
// and merged at read time: an item is starred when the backend says so or
// its id is in the set. Ids are assumed unique across files and folders.
type Overlay struct {
	ns *Namespace

	mu  sync.RWMutex
	ids map[string]struct{}
}

// LoadOverlay reads the star set of the namespace. A missing set is empty.
func LoadOverlay(ns *Namespace) (*Overlay, error) {
	o := &Overlay{ns: ns, ids: make(map[string]struct{})}

	var ids []string
	err := ns.Get(KeyStarred, &ids)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load star overlay: %w", err)
	}
	for _, id := range ids {
		o.ids[id] = struct{}{}
	}
	return o, nil
}

// Has reports whether id is in the set.
func (o *Overlay) Has(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.ids[id]
	return ok
}

// Len returns the size of the set.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.ids)
}

// IDs returns the set, sorted.
func (o *Overlay) IDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return sortedIDs(o.ids)
}

// Toggle flips id's membership and persists the set before returning. It
// reports the new membership. The flip applies to the set as currently
// stored, so ids starred by another process meanwhile are kept. When
// persisting fails the set is unchanged.
func (o *Overlay) Toggle(id string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var next map[string]struct{}
	err := o.ns.Update(KeyStarred, func(cur json.RawMessage, ok bool) (any, error) {
		next = make(map[string]struct{})
		if ok {
			var ids []string
			if err := json.Unmarshal(cur, &ids); err != nil {
				return nil, fmt.Errorf("decode star overlay: %w", err)
			}
			for _, id := range ids {
				next[id] = struct{}{}
			}
		}
		if _, was := next[id]; was {
			delete(next, id)
		} else {
			next[id] = struct{}{}
		}
		return sortedIDs(next), nil
	})
	if err != nil {
		_, was := o.ids[id]
		return was, fmt.Errorf("persist star overlay: %w", err)
	}

	o.ids = next
	_, now := next[id]
	return now, nil
}

// Effective returns the starred flag to display for it.
func (o *Overlay) Effective(it models.Item) bool {
	return it.Starred || o.Has(it.ID)
}

// Apply returns copies of items with Starred set to the effective flag.
// The input is not modified.
func (o *Overlay) Apply(items []models.Item) []models.Item {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.Item, len(items))
	for i, it := range items {
		if _, ok := o.ids[it.ID]; ok {
			it.Starred = true
		}
		out[i] = it
	}
	return out
}

// Filter returns the effectively starred items, with the flag applied.
func (o *Overlay) Filter(items []models.Item) []models.Item {
	out := make([]models.Item, 0)
	for _, it := range o.Apply(items) {
		if it.Starred {
			out = append(out, it)
		}
	}
	return out
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
