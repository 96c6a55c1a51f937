package billing

import (
	"strings"

	"github.com/goldenyears/premium-api/internal/pkg/env"
)

const (
	PlanPremiumMonthly = "premium-monthly"
	PlanPremiumYearly  = "premium-yearly"
)

// PlanCatalogFromEnv maps plan names to the Stripe price ids configured for
// this deployment. Plans without a configured price are treated as unknown.
func PlanCatalogFromEnv() map[string]string {
	catalog := map[string]string{}
	if p := env.GetEnv("PLAN_PRICE_PREMIUM_MONTHLY", ""); p != "" {
		catalog[PlanPremiumMonthly] = p
	}
	if p := env.GetEnv("PLAN_PRICE_PREMIUM_YEARLY", ""); p != "" {
		catalog[PlanPremiumYearly] = p
	}
	return catalog
}

func normalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// resolvePrice maps a client-supplied plan name onto a Stripe price id.
func resolvePrice(catalog map[string]string, plan string) (string, error) {
	price, ok := catalog[normalizePlan(plan)]
	if !ok || price == "" {
		return "", ErrPlanInvalid
	}
	return price, nil
}
