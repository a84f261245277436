package domain

import (
	"testing"
	"time"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
)

func TestValidParish(t *testing.T) {
	if !ValidParish("St. Andrew") {
		t.Errorf("St. Andrew is a parish")
	}
	if !ValidParish("Trelawny") {
		t.Errorf("Trelawny is a parish")
	}
	if ValidParish("Montego Bay") {
		t.Errorf("Montego Bay is a town, not a parish")
	}
	if ValidParish("") {
		t.Errorf("empty string is not a parish")
	}
}

func TestAccessExpiryFor(t *testing.T) {
	granted := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		tier string
		want *time.Time
	}{
		{allocdomain.TierFree, nil},
		{allocdomain.Tier7Day, timePtr(granted.AddDate(0, 0, 7))},
		{allocdomain.Tier30Day, timePtr(granted.AddDate(0, 0, 30))},
		{allocdomain.Tier90Day, timePtr(granted.AddDate(0, 0, 90))},
		{"unknown", nil},
	}

	for _, tc := range tests {
		got := AccessExpiryFor(tc.tier, granted)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("AccessExpiryFor(%q) = %v, want nil", tc.tier, got)
		case tc.want != nil && (got == nil || !got.Equal(*tc.want)):
			t.Errorf("AccessExpiryFor(%q) = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestPlansCoverAllTiers(t *testing.T) {
	plans := Plans()
	if len(plans) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(plans))
	}
	for _, plan := range plans {
		if !ValidTier(plan.ID) {
			t.Errorf("plan %q is not a valid tier", plan.ID)
		}
		if plan.PriceJMD != TierPriceJMD(plan.ID) {
			t.Errorf("plan %q price mismatch", plan.ID)
		}
	}
}
