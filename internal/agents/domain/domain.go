// Package domain holds the agent onboarding rules: parish validation and
// paid access windows.
package domain

import (
	"time"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
)

// Parishes is the fixed set of Jamaican parishes an agent can serve.
var Parishes = []string{
	"Kingston",
	"St. Andrew",
	"St. Thomas",
	"Portland",
	"St. Mary",
	"St. Ann",
	"Trelawny",
	"St. James",
	"Hanover",
	"Westmoreland",
	"St. Elizabeth",
	"Manchester",
	"Clarendon",
	"St. Catherine",
}

// ValidParish reports whether name is a known parish.
func ValidParish(name string) bool {
	for _, p := range Parishes {
		if p == name {
			return true
		}
	}
	return false
}

// ValidTier reports whether tier is a known payment tier.
func ValidTier(tier string) bool {
	switch tier {
	case allocdomain.TierFree, allocdomain.Tier7Day, allocdomain.Tier30Day, allocdomain.Tier90Day:
		return true
	}
	return false
}

// AccessExpiryFor computes the access window granted by a tier, starting at
// the moment the payment is recorded. The free tier grants no window.
func AccessExpiryFor(tier string, grantedAt time.Time) *time.Time {
	duration := allocdomain.TierDuration(tier)
	if duration == 0 {
		return nil
	}
	expiry := grantedAt.Add(duration)
	return &expiry
}

// TierPriceJMD returns the advertised price of a tier in Jamaican dollars.
func TierPriceJMD(tier string) int64 {
	switch tier {
	case allocdomain.Tier7Day:
		return 3500
	case allocdomain.Tier30Day:
		return 10000
	case allocdomain.Tier90Day:
		return 25000
	default:
		return 0
	}
}

// Plan describes one access tier for the public pricing page.
type Plan struct {
	ID           string
	Name         string
	DurationDays int
	PriceJMD     int64
	Description  string
}

// Plans returns the advertised access tiers in display order.
func Plans() []Plan {
	return []Plan{
		{ID: allocdomain.TierFree, Name: "Free Access", DurationDays: 0, PriceJMD: 0, Description: "Test the platform on small rentals"},
		{ID: allocdomain.Tier7Day, Name: "7-Day Access", DurationDays: 7, PriceJMD: 3500, Description: "Low-risk entry to more leads"},
		{ID: allocdomain.Tier30Day, Name: "30-Day Access", DurationDays: 30, PriceJMD: 10000, Description: "Full access to all requests and features"},
		{ID: allocdomain.Tier90Day, Name: "90-Day Access", DurationDays: 90, PriceJMD: 25000, Description: "Same power, lower cost per day"},
	}
}
