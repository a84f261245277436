package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func ts(value string) *time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func TestEligible(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		agent Agent
		want  bool
	}{
		{"approved paid no expiry", Agent{VerificationStatus: VerificationApproved, PaymentStatus: Tier30Day}, true},
		{"approved paid future expiry", Agent{VerificationStatus: VerificationApproved, PaymentStatus: Tier7Day, AccessExpiry: &future}, true},
		{"approved paid lapsed expiry", Agent{VerificationStatus: VerificationApproved, PaymentStatus: Tier90Day, AccessExpiry: &past}, false},
		{"pending verification", Agent{VerificationStatus: VerificationPending, PaymentStatus: Tier30Day}, false},
		{"rejected verification", Agent{VerificationStatus: VerificationRejected, PaymentStatus: Tier30Day}, false},
		{"free tier", Agent{VerificationStatus: VerificationApproved, PaymentStatus: TierFree}, false},
		{"expiry exactly now", Agent{VerificationStatus: VerificationApproved, PaymentStatus: Tier30Day, AccessExpiry: &now}, true},
	}

	for _, tc := range tests {
		if got := Eligible(tc.agent, now); got != tc.want {
			t.Errorf("%s: Eligible() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEligibleAgentsIsPureFilter(t *testing.T) {
	now := time.Now()
	agents := []Agent{
		{ID: uuid.New(), VerificationStatus: VerificationApproved, PaymentStatus: Tier30Day},
		{ID: uuid.New(), VerificationStatus: VerificationPending, PaymentStatus: Tier30Day},
		{ID: uuid.New(), VerificationStatus: VerificationApproved, PaymentStatus: TierFree},
	}

	got := EligibleAgents(agents, now)
	if len(got) != 1 || got[0].ID != agents[0].ID {
		t.Fatalf("expected only first agent eligible, got %d agents", len(got))
	}

	// Input must be untouched.
	if len(agents) != 3 {
		t.Fatalf("input slice was modified")
	}
}

func TestRankQueueNullsFirst(t *testing.T) {
	neverServed := Agent{ID: uuid.New()}
	served := Agent{ID: uuid.New(), LastRequestAssignedAt: ts("2024-01-01T00:00:00Z")}

	ranked := RankQueue([]Agent{served, neverServed})
	if ranked[0].ID != neverServed.ID {
		t.Errorf("never-served agent must rank before any served agent")
	}
}

func TestRankQueueOldestFirst(t *testing.T) {
	oldest := Agent{ID: uuid.New(), LastRequestAssignedAt: ts("2024-01-01T00:00:00Z")}
	middle := Agent{ID: uuid.New(), LastRequestAssignedAt: ts("2024-02-01T00:00:00Z")}
	latest := Agent{ID: uuid.New(), LastRequestAssignedAt: ts("2024-03-01T00:00:00Z")}

	ranked := RankQueue([]Agent{latest, oldest, middle})
	want := []uuid.UUID{oldest.ID, middle.ID, latest.ID}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankQueueTieBreakByAgentID(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idB := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	when := ts("2024-01-01T00:00:00Z")

	// Same timestamp, presented in both orders; ranking must be identical.
	first := RankQueue([]Agent{{ID: idB, LastRequestAssignedAt: when}, {ID: idA, LastRequestAssignedAt: when}})
	second := RankQueue([]Agent{{ID: idA, LastRequestAssignedAt: when}, {ID: idB, LastRequestAssignedAt: when}})

	if first[0].ID != idA || second[0].ID != idA {
		t.Errorf("tie-break must order by agent ID ascending regardless of input order")
	}

	// Same rule for two never-served agents.
	third := RankQueue([]Agent{{ID: idB}, {ID: idA}})
	if third[0].ID != idA {
		t.Errorf("nil-timestamp tie-break must order by agent ID ascending")
	}
}

func TestRankQueueDoesNotModifyInput(t *testing.T) {
	a := Agent{ID: uuid.New(), LastRequestAssignedAt: ts("2024-02-01T00:00:00Z")}
	b := Agent{ID: uuid.New()}
	input := []Agent{a, b}

	_ = RankQueue(input)
	if input[0].ID != a.ID || input[1].ID != b.ID {
		t.Errorf("RankQueue must sort a copy, not the input")
	}
}

func TestNextInQueue(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no eligible agents", func(t *testing.T) {
		agents := []Agent{
			{ID: uuid.New(), VerificationStatus: VerificationPending, PaymentStatus: Tier30Day},
		}
		if _, ok := NextInQueue(agents, now); ok {
			t.Errorf("expected no candidate from an ineligible set")
		}
	})

	t.Run("single eligible agent wins regardless of timestamp", func(t *testing.T) {
		only := Agent{
			ID:                    uuid.New(),
			VerificationStatus:    VerificationApproved,
			PaymentStatus:         Tier30Day,
			LastRequestAssignedAt: ts("2030-01-01T00:00:00Z"),
		}
		agents := []Agent{
			only,
			{ID: uuid.New(), VerificationStatus: VerificationRejected, PaymentStatus: Tier30Day},
		}
		got, ok := NextInQueue(agents, now)
		if !ok || got.ID != only.ID {
			t.Errorf("single eligible agent must be selected")
		}
	})

	// The worked scenario: A (approved, 30-day, never served), B (approved,
	// 30-day, served 2024-01-01), C (pending). A wins first; after A is
	// stamped, B wins.
	t.Run("round robin scenario", func(t *testing.T) {
		agentA := Agent{ID: uuid.New(), VerificationStatus: VerificationApproved, PaymentStatus: Tier30Day}
		agentB := Agent{ID: uuid.New(), VerificationStatus: VerificationApproved, PaymentStatus: Tier30Day, LastRequestAssignedAt: ts("2024-01-01T00:00:00Z")}
		agentC := Agent{ID: uuid.New(), VerificationStatus: VerificationPending, PaymentStatus: Tier30Day}

		got, ok := NextInQueue([]Agent{agentA, agentB, agentC}, now)
		if !ok || got.ID != agentA.ID {
			t.Fatalf("first allocation must go to the never-served agent A")
		}

		// A receives the lead and is stamped "now"; the released lead must
		// then go to B.
		stamped := now
		agentA.LastRequestAssignedAt = &stamped

		got, ok = NextInQueue([]Agent{agentA, agentB, agentC}, now)
		if !ok || got.ID != agentB.ID {
			t.Fatalf("after stamping A, allocation must go to B")
		}
	})
}

func TestTierDuration(t *testing.T) {
	tests := []struct {
		tier string
		want time.Duration
	}{
		{Tier7Day, 7 * 24 * time.Hour},
		{Tier30Day, 30 * 24 * time.Hour},
		{Tier90Day, 90 * 24 * time.Hour},
		{TierFree, 0},
		{"unknown", 0},
	}
	for _, tc := range tests {
		if got := TierDuration(tc.tier); got != tc.want {
			t.Errorf("TierDuration(%q) = %v, want %v", tc.tier, got, tc.want)
		}
	}
}
