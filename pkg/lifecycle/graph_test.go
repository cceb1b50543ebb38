package lifecycle

import (
	"testing"

	"github.com/dukex/casegate/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestTransitions_EveryStatusIsKnown(t *testing.T) {
	for _, status := range models.AllStatuses {
		assert.True(t, IsKnown(status), "status %s missing from adjacency table", status)
	}

	assert.Len(t, transitions, len(models.AllStatuses))
}

func TestTransitions_EdgesTargetKnownStatuses(t *testing.T) {
	for from, targets := range transitions {
		for _, to := range targets {
			assert.True(t, IsKnown(to), "edge %s -> %s targets unknown status", from, to)
		}
	}
}

func TestTransitions_AllReachableFromIntake(t *testing.T) {
	reachable := Reachable(models.StatusIntake)

	for _, status := range models.AllStatuses {
		assert.True(t, reachable[status], "status %s unreachable from intake", status)
	}
}

func TestTransitions_OnlyTerminalsHaveNoOutgoingEdges(t *testing.T) {
	terminals := []models.CaseStatus{models.StatusFinalApproved, models.StatusFinalRejected, models.StatusAbandoned}

	for _, status := range models.AllStatuses {
		if IsTerminal(status) {
			assert.Contains(t, terminals, status)
		} else {
			assert.NotEmpty(t, transitions[status], "non-terminal %s has no outgoing edge", status)
		}
	}

	for _, terminal := range terminals {
		assert.True(t, IsTerminal(terminal))
	}
}

func TestTransitions_EveryStatusButIntakeHasIncomingEdge(t *testing.T) {
	incoming := make(map[models.CaseStatus]int)
	for _, targets := range transitions {
		for _, to := range targets {
			incoming[to]++
		}
	}

	for _, status := range models.AllStatuses {
		if status == models.StatusIntake {
			continue
		}

		assert.Positive(t, incoming[status], "status %s has no incoming edge", status)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to models.CaseStatus
		expected bool
	}{
		{"start requirements", models.StatusIntake, models.StatusRequirementsDrafting, true},
		{"submit draft", models.StatusDesignDrafting, models.StatusDesignPendingReview, true},
		{"resubmit after rejection", models.StatusCostRejected, models.StatusCostPendingReview, true},
		{"revise after rejection", models.StatusValueRejected, models.StatusValueDrafting, true},
		{"cost branch opens join", models.StatusCostApproved, models.StatusJoinInProgress, true},
		{"value branch opens join", models.StatusValueApproved, models.StatusJoinInProgress, true},
		{"join reverts to branch", models.StatusJoinInProgress, models.StatusValueApproved, true},
		{"skip review", models.StatusDesignDrafting, models.StatusDesignApproved, false},
		{"reopen approved stage", models.StatusRequirementsApproved, models.StatusRequirementsDrafting, false},
		{"abandon during join", models.StatusJoinInProgress, models.StatusAbandoned, false},
		{"leave terminal", models.StatusFinalRejected, models.StatusFinalPendingReview, false},
		{"unknown from", models.CaseStatus("bogus"), models.StatusIntake, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanTransition(tt.from, tt.to))
		})
	}
}
