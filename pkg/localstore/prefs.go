package localstore

import (
	"encoding/json"
	"strings"

	"github.com/fruitsalade/webdrive/pkg/models"
)

// MaxRecentSearches bounds the recent search list.
const MaxRecentSearches = 10

// StoredPlan returns the plan remembered for the user, if any.
func (n *Namespace) StoredPlan() (models.Plan, bool) {
	var s string
	if err := n.Get(KeyPlan, &s); err != nil {
		return models.PlanFree, false
	}
	return models.ParsePlan(s)
}

// SetPlan remembers the user's plan.
func (n *Namespace) SetPlan(p models.Plan) error {
	return n.Set(KeyPlan, string(p))
}

// EffectivePlan picks the server-reported plan, then the stored one, then
// free.
func (n *Namespace) EffectivePlan(server models.Plan) models.Plan {
	if p, ok := models.ParsePlan(string(server)); ok {
		return p
	}
	if p, ok := n.StoredPlan(); ok {
		return p
	}
	return models.PlanFree
}

// RecentSearches returns the user's recent queries, most recent first.
func (n *Namespace) RecentSearches() []string {
	var list []string
	if err := n.Get(KeyRecentSearches, &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

// AddRecentSearch puts q at the front of the recent list, removing an
// earlier identical entry and keeping at most MaxRecentSearches. Blank
// queries are ignored.
func (n *Namespace) AddRecentSearch(q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return n.RecentSearches(), nil
	}

	var out []string
	err := n.Update(KeyRecentSearches, func(cur json.RawMessage, ok bool) (any, error) {
		var prev []string
		if ok {
			_ = json.Unmarshal(cur, &prev)
		}
		out = make([]string, 0, MaxRecentSearches)
		out = append(out, q)
		for _, s := range prev {
			if s == q {
				continue
			}
			if len(out) == MaxRecentSearches {
				break
			}
			out = append(out, s)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearRecentSearches forgets the user's recent queries.
func (n *Namespace) ClearRecentSearches() error {
	return n.Delete(KeyRecentSearches)
}
