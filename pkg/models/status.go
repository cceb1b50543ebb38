// Package models defines the core domain models for stage-gated business cases.
package models

// Stage identifies one document-generation step of the fixed pipeline.
type Stage string

const (
	StageRequirements Stage = "requirements"
	StageDesign       Stage = "design"
	StageCost         Stage = "cost"  // effort estimate and cost figure
	StageValue        Stage = "value" // value scenarios
	StageFinancial    Stage = "financial"
)

// CaseStatus is a node of the case state graph.
type CaseStatus string

const (
	StatusIntake CaseStatus = "intake"

	StatusRequirementsDrafting      CaseStatus = "requirements_drafting"
	StatusRequirementsPendingReview CaseStatus = "requirements_pending_review"
	StatusRequirementsApproved      CaseStatus = "requirements_approved"
	StatusRequirementsRejected      CaseStatus = "requirements_rejected"

	StatusDesignDrafting      CaseStatus = "design_drafting"
	StatusDesignPendingReview CaseStatus = "design_pending_review"
	StatusDesignApproved      CaseStatus = "design_approved"
	StatusDesignRejected      CaseStatus = "design_rejected"

	StatusCostDrafting      CaseStatus = "cost_drafting"
	StatusCostPendingReview CaseStatus = "cost_pending_review"
	StatusCostApproved      CaseStatus = "cost_approved"
	StatusCostRejected      CaseStatus = "cost_rejected"

	StatusValueDrafting      CaseStatus = "value_drafting"
	StatusValuePendingReview CaseStatus = "value_pending_review"
	StatusValueApproved      CaseStatus = "value_approved"
	StatusValueRejected      CaseStatus = "value_rejected"

	StatusJoinInProgress     CaseStatus = "join_in_progress"
	StatusJoinComplete       CaseStatus = "join_complete"
	StatusFinalPendingReview CaseStatus = "final_pending_review"
	StatusFinalApproved      CaseStatus = "final_approved"
	StatusFinalRejected      CaseStatus = "final_rejected"

	StatusAbandoned CaseStatus = "abandoned"
)

// AllStatuses lists every node of the state graph in pipeline order.
var AllStatuses = []CaseStatus{
	StatusIntake,
	StatusRequirementsDrafting, StatusRequirementsPendingReview, StatusRequirementsApproved, StatusRequirementsRejected,
	StatusDesignDrafting, StatusDesignPendingReview, StatusDesignApproved, StatusDesignRejected,
	StatusCostDrafting, StatusCostPendingReview, StatusCostApproved, StatusCostRejected,
	StatusValueDrafting, StatusValuePendingReview, StatusValueApproved, StatusValueRejected,
	StatusJoinInProgress, StatusJoinComplete, StatusFinalPendingReview, StatusFinalApproved, StatusFinalRejected,
	StatusAbandoned,
}

// AllStages lists the pipeline stages in order.
var AllStages = []Stage{StageRequirements, StageDesign, StageCost, StageValue, StageFinancial}
