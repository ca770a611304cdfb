package membership

import (
	"context"
	"net/http"
	"sort"

	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/models"
)

// Doer issues gateway requests. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) api.Result
}

// Service lists purchasable VIP plans.
type Service struct {
	client Doer
}

// NewService constructs a membership service on top of the gateway.
func NewService(client Doer) *Service {
	return &Service{client: client}
}

// List fetches the plans, longest tier first. When the backend has none
// configured the built-in price list is returned.
func (s *Service) List(ctx context.Context) ([]models.MembershipPlan, error) {
	var plans []models.MembershipPlan
	res := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/member/list"}, &plans)
	if err := res.Err(); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return DefaultPlans(), nil
	}
	Sort(plans)
	return plans, nil
}

// Sort orders plans yearly, quarterly, monthly, keeping backend order within a tier.
func Sort(plans []models.MembershipPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Tier > plans[j].Tier
	})
}

// DefaultPlans is the price list shown on the upsell page.
func DefaultPlans() []models.MembershipPlan {
	return []models.MembershipPlan{
		{Name: "年度会员", Tier: models.TierYearly, Price: 298},
		{Name: "季度会员", Tier: models.TierQuarterly, Price: 78},
		{Name: "月度会员", Tier: models.TierMonthly, Price: 30},
	}
}
