package localstore

import (
	"encoding/json"
	"fmt"
)

// LegacyKeys are the keys older clients stored without a user suffix.
var LegacyKeys = []string{KeyStarred, KeyPlan, KeyRecentSearches}

// Migrate moves legacy un-namespaced values into userID's namespace. A key
// is moved only when the user has no value of their own; the legacy value is
// then removed. Legacy values shadowed by a namespaced one are left alone.
// It returns the keys that were moved.
func Migrate(s *Store, userID string, keys ...string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	if len(keys) == 0 {
		keys = LegacyKeys
	}

	var moved []string
	for _, key := range keys {
		var legacy json.RawMessage
		if err := s.Get(key, &legacy); err != nil {
			continue
		}
		target := NamespacedKey(key, userID)
		if s.Has(target) {
			continue
		}
		if err := s.Set(target, legacy); err != nil {
			return moved, fmt.Errorf("migrate %s: %w", key, err)
		}
		if err := s.Delete(key); err != nil {
			return moved, fmt.Errorf("remove legacy %s: %w", key, err)
		}
		moved = append(moved, key)
	}
	return moved, nil
}
