package dashboard

import (
	"context"
	"fmt"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/models"
)

// Account is the storage summary shown next to the file list.
type Account struct {
	User    models.User
	Plan    models.Plan
	Storage models.StorageInfo
}

// Account fetches the current user. The plan is the server's, else the one
// stored locally, else free; the storage total always comes from the plan.
func (s *Session) Account(ctx context.Context) (Account, error) {
	u, err := s.api.CurrentUser(ctx)
	if err != nil {
		logFailure("failed to load storage info", err)
		return Account{}, fmt.Errorf("storage info: %w", err)
	}

	plan := s.ns.EffectivePlan(u.Plan)
	return Account{
		User:    *u,
		Plan:    plan,
		Storage: models.StorageFor(plan, u.StorageUsed),
	}, nil
}

// SetPlan remembers plan for users whose backend does not report one.
func (s *Session) SetPlan(name string) (models.Plan, error) {
	plan, ok := models.ParsePlan(name)
	if !ok {
		return models.PlanFree, fmt.Errorf("unknown plan %q", name)
	}
	if err := s.ns.SetPlan(plan); err != nil {
		logFailure("failed to store plan", err)
		return plan, fmt.Errorf("store plan: %w", err)
	}
	logging.Info("plan stored", logging.String("plan", string(plan)))
	return plan, nil
}
