// Package lifecycle holds the case state graph and the fixed stage pipeline.
package lifecycle

import (
	"slices"

	"github.com/dukex/casegate/pkg/models"
)

// transitions is the single adjacency table every orchestrator operation consults.
var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusIntake: {models.StatusRequirementsDrafting, models.StatusAbandoned},

	models.StatusRequirementsDrafting:      {models.StatusRequirementsPendingReview, models.StatusAbandoned},
	models.StatusRequirementsPendingReview: {models.StatusRequirementsApproved, models.StatusRequirementsRejected, models.StatusAbandoned},
	models.StatusRequirementsApproved:      {models.StatusDesignDrafting, models.StatusAbandoned},
	models.StatusRequirementsRejected:      {models.StatusRequirementsDrafting, models.StatusRequirementsPendingReview, models.StatusAbandoned},

	models.StatusDesignDrafting:      {models.StatusDesignPendingReview, models.StatusAbandoned},
	models.StatusDesignPendingReview: {models.StatusDesignApproved, models.StatusDesignRejected, models.StatusAbandoned},
	models.StatusDesignApproved:      {models.StatusCostDrafting, models.StatusValueDrafting, models.StatusAbandoned},
	models.StatusDesignRejected:      {models.StatusDesignDrafting, models.StatusDesignPendingReview, models.StatusAbandoned},

	models.StatusCostDrafting:      {models.StatusCostPendingReview, models.StatusAbandoned},
	models.StatusCostPendingReview: {models.StatusCostApproved, models.StatusCostRejected, models.StatusAbandoned},
	models.StatusCostApproved:      {models.StatusJoinInProgress, models.StatusAbandoned},
	models.StatusCostRejected:      {models.StatusCostDrafting, models.StatusCostPendingReview, models.StatusAbandoned},

	models.StatusValueDrafting:      {models.StatusValuePendingReview, models.StatusAbandoned},
	models.StatusValuePendingReview: {models.StatusValueApproved, models.StatusValueRejected, models.StatusAbandoned},
	models.StatusValueApproved:      {models.StatusJoinInProgress, models.StatusAbandoned},
	models.StatusValueRejected:      {models.StatusValueDrafting, models.StatusValuePendingReview, models.StatusAbandoned},

	// join_in_progress falls back to whichever branch approval held the case before the join.
	models.StatusJoinInProgress:     {models.StatusJoinComplete, models.StatusCostApproved, models.StatusValueApproved},
	models.StatusJoinComplete:       {models.StatusFinalPendingReview, models.StatusAbandoned},
	models.StatusFinalPendingReview: {models.StatusFinalApproved, models.StatusFinalRejected, models.StatusAbandoned},

	models.StatusFinalApproved: nil,
	models.StatusFinalRejected: nil,
	models.StatusAbandoned:     nil,
}

// IsKnown reports whether status is a node of the graph.
func IsKnown(status models.CaseStatus) bool {
	_, ok := transitions[status]

	return ok
}

// IsTerminal reports whether status has no outgoing edges.
func IsTerminal(status models.CaseStatus) bool {
	next, ok := transitions[status]

	return ok && len(next) == 0
}

// CanTransition reports whether the table holds the edge from → to.
func CanTransition(from, to models.CaseStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Reachable returns every status reachable from start, start included.
func Reachable(start models.CaseStatus) map[models.CaseStatus]bool {
	seen := map[models.CaseStatus]bool{start: true}
	queue := []models.CaseStatus{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range transitions[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	return seen
}
