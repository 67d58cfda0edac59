//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"reply-assistant/internal/usecase"
)

func TestUsageGate_CheckUsageAllowed(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name        string
		repo        *mockUsageRepo
		wantAllowed bool
		wantOverage bool
	}{
		{"under the limit", &mockUsageRepo{count: 3, limit: 10}, true, false},
		{"at the limit", &mockUsageRepo{count: 10, limit: 10}, false, false},
		{"past the limit with overage", &mockUsageRepo{count: 12, limit: 10, overage: true}, true, true},
		{"unlimited plan", &mockUsageRepo{count: 5000, limit: 0}, true, false},
		{"store failure fails open", &mockUsageRepo{checkErr: errors.New("conn reset")}, true, false},
		{"tenant without plan fails open", &mockUsageRepo{noPlan: true}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := usecase.NewUsageGate(tc.repo, newTestLogger())
			d := gate.CheckUsageAllowed(ctx, "t1", "u1")
			if d.Allowed != tc.wantAllowed {
				t.Fatalf("expected allowed=%v, got %+v", tc.wantAllowed, d)
			}
			if d.IsOverage != tc.wantOverage {
				t.Errorf("expected overage=%v, got %v", tc.wantOverage, d.IsOverage)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("expected a reason on denial")
			}
		})
	}
}

func TestUsageGate_Increment(t *testing.T) {
	repo := &mockUsageRepo{limit: 10}
	gate := usecase.NewUsageGate(repo, newTestLogger())
	if err := gate.Increment(context.Background(), "t1", "u1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.Increments() != 1 {
		t.Errorf("expected one increment, got %d", repo.Increments())
	}
}
