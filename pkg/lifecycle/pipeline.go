package lifecycle

import (
	"fmt"

	"github.com/dukex/casegate/pkg/models"
)

// StageSpec describes one stage of the pipeline. The orchestrator only reads
// these fields; adding a stage means adding a StageSpec and its edges above.
type StageSpec struct {
	Stage models.Stage
	// Gate is the stage whose approval opens this one; empty for the first stage.
	Gate models.Stage
	// Upstream lists the stages whose approved artifacts are handed to the agent.
	Upstream []models.Stage
	// Cascade lists the stages generated synchronously when this stage is approved.
	Cascade []models.Stage
	// JoinBranch marks stages whose approval feeds the dual-approval join.
	JoinBranch bool

	Drafting      models.CaseStatus
	PendingReview models.CaseStatus
	Approved      models.CaseStatus
	Rejected      models.CaseStatus
}

// JoinBranches are the two stages that must both be approved before the financial model runs.
var JoinBranches = []models.Stage{models.StageCost, models.StageValue}

var pipeline = map[models.Stage]StageSpec{
	models.StageRequirements: {
		Stage:         models.StageRequirements,
		Cascade:       []models.Stage{models.StageDesign},
		Drafting:      models.StatusRequirementsDrafting,
		PendingReview: models.StatusRequirementsPendingReview,
		Approved:      models.StatusRequirementsApproved,
		Rejected:      models.StatusRequirementsRejected,
	},
	models.StageDesign: {
		Stage:         models.StageDesign,
		Gate:          models.StageRequirements,
		Upstream:      []models.Stage{models.StageRequirements},
		Cascade:       []models.Stage{models.StageCost, models.StageValue},
		Drafting:      models.StatusDesignDrafting,
		PendingReview: models.StatusDesignPendingReview,
		Approved:      models.StatusDesignApproved,
		Rejected:      models.StatusDesignRejected,
	},
	models.StageCost: {
		Stage:         models.StageCost,
		Gate:          models.StageDesign,
		Upstream:      []models.Stage{models.StageRequirements, models.StageDesign},
		JoinBranch:    true,
		Drafting:      models.StatusCostDrafting,
		PendingReview: models.StatusCostPendingReview,
		Approved:      models.StatusCostApproved,
		Rejected:      models.StatusCostRejected,
	},
	models.StageValue: {
		Stage:         models.StageValue,
		Gate:          models.StageDesign,
		Upstream:      []models.Stage{models.StageRequirements},
		JoinBranch:    true,
		Drafting:      models.StatusValueDrafting,
		PendingReview: models.StatusValuePendingReview,
		Approved:      models.StatusValueApproved,
		Rejected:      models.StatusValueRejected,
	},
	// The financial stage is produced by the join; its drafting state is join_complete.
	models.StageFinancial: {
		Stage:         models.StageFinancial,
		Upstream:      []models.Stage{models.StageCost, models.StageValue},
		Drafting:      models.StatusJoinComplete,
		PendingReview: models.StatusFinalPendingReview,
		Approved:      models.StatusFinalApproved,
		Rejected:      models.StatusFinalRejected,
	},
}

// Spec returns the StageSpec or an error for an unknown stage.
func Spec(stage models.Stage) (StageSpec, error) {
	spec, ok := pipeline[stage]
	if !ok {
		return StageSpec{}, fmt.Errorf("unknown stage %q", stage)
	}

	return spec, nil
}

// IsGenerated reports whether the stage is produced by a Stage Agent cascade
// rather than by the join.
func (s StageSpec) IsGenerated() bool {
	return s.Stage != models.StageFinancial
}

// EntryStatus is the status a stage lane moves out of when its first draft is generated.
func (s StageSpec) EntryStatus() models.CaseStatus {
	if s.Gate == "" {
		return models.StatusIntake
	}

	return pipeline[s.Gate].Approved
}

// Current returns the status the stage lane is in for c. A stage that has not
// started reports its entry status when the gate is open, "" otherwise.
func (s StageSpec) Current(c *models.Case) models.CaseStatus {
	if status := c.StageStatus(s.Stage); status != "" {
		return status
	}

	if !s.IsGenerated() {
		return ""
	}

	if s.Gate == "" {
		if c.Status == models.StatusIntake {
			return models.StatusIntake
		}

		return ""
	}

	if c.StageStatus(s.Gate) == pipeline[s.Gate].Approved {
		return s.EntryStatus()
	}

	return ""
}
