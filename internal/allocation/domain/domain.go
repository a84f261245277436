// Package domain provides the core business rules for lead allocation:
// agent eligibility and round-robin queue ranking. Everything here is pure;
// persistence and transitions live in the allocation service.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Agent verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Agent payment tiers. Free agents never receive allocated leads.
const (
	TierFree   = "free"
	Tier7Day   = "7-day"
	Tier30Day  = "30-day"
	Tier90Day  = "90-day"
)

// paidTiers is the set of tiers that qualify for lead allocation.
var paidTiers = map[string]bool{
	Tier7Day:  true,
	Tier30Day: true,
	Tier90Day: true,
}

// IsPaidTier reports whether the tier qualifies for lead allocation.
func IsPaidTier(tier string) bool {
	return paidTiers[tier]
}

// TierDuration returns the access duration granted by a paid tier.
// The zero duration means the tier carries no expiry (free tier).
func TierDuration(tier string) time.Duration {
	switch tier {
	case Tier7Day:
		return 7 * 24 * time.Hour
	case Tier30Day:
		return 30 * 24 * time.Hour
	case Tier90Day:
		return 90 * 24 * time.Hour
	default:
		return 0
	}
}

// Agent is the allocation engine's view of an agent record.
type Agent struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	VerificationStatus    string
	PaymentStatus         string
	AccessExpiry          *time.Time
	LastRequestAssignedAt *time.Time
}

// Eligible reports whether a single agent may receive newly created or
// released leads at the given evaluation time: approved verification, a paid
// tier, and an access window that has not lapsed (nil expiry means unlimited
// under the current tier).
func Eligible(a Agent, now time.Time) bool {
	if a.VerificationStatus != VerificationApproved {
		return false
	}
	if !IsPaidTier(a.PaymentStatus) {
		return false
	}
	if a.AccessExpiry != nil && a.AccessExpiry.Before(now) {
		return false
	}
	return true
}

// EligibleAgents filters the input to agents eligible for allocation.
// Pure: the input slice is not modified.
func EligibleAgents(agents []Agent, now time.Time) []Agent {
	out := make([]Agent, 0, len(agents))
	for _, a := range agents {
		if Eligible(a, now) {
			out = append(out, a)
		}
	}
	return out
}

// RankQueue orders agents for allocation priority: ascending by
// LastRequestAssignedAt with nil first, so never-served agents take priority
// over any agent with a recorded assignment. Agents with equal timestamps
// (including both nil) are ordered by agent ID ascending, giving the queue a
// deterministic order independent of fetch order. Returns a sorted copy.
func RankQueue(agents []Agent) []Agent {
	ranked := make([]Agent, len(agents))
	copy(ranked, agents)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		switch {
		case a.LastRequestAssignedAt == nil && b.LastRequestAssignedAt == nil:
			return lessID(a.ID, b.ID)
		case a.LastRequestAssignedAt == nil:
			return true
		case b.LastRequestAssignedAt == nil:
			return false
		case a.LastRequestAssignedAt.Equal(*b.LastRequestAssignedAt):
			return lessID(a.ID, b.ID)
		default:
			return a.LastRequestAssignedAt.Before(*b.LastRequestAssignedAt)
		}
	})

	return ranked
}

// NextInQueue selects the agent who should receive the next lead: the head
// of the ranked eligible set. The second return is false when no agent is
// eligible, which is a valid steady state, not an error.
func NextInQueue(agents []Agent, now time.Time) (Agent, bool) {
	eligible := EligibleAgents(agents, now)
	if len(eligible) == 0 {
		return Agent{}, false
	}
	ranked := RankQueue(eligible)
	return ranked[0], true
}

func lessID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}
