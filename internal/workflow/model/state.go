package model

import (
	"time"

	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
)

// WorkflowState is the mutable aggregate for one onboarding session. It is
// exclusively owned by the session's orchestrator; nothing else writes it.
//
// CurrentStep is nil before initialization and always an element of
// AvailableSteps afterwards; advancing past the last element exits the
// workflow rather than entering another state. ActionedSteps only grows
// within a session.
type WorkflowState struct {
	CurrentStep    *Step         `json:"currentStep,omitempty"`
	AvailableSteps []Step        `json:"availableSteps"`
	ActionedSteps  map[Step]bool `json:"actionedSteps"`

	PotFactory *coreapi.PotFactoryDetails `json:"potFactory,omitempty"`
	Pot        *coreapi.Pot               `json:"pot,omitempty"`
	PotID      string                     `json:"potId,omitempty"`
	// PotEvent is the last pot lifecycle event pushed over the bridge. It is
	// an independent source of truth from Pot.Status; either can satisfy a
	// completion condition.
	PotEvent notifications.PotEvent `json:"potEvent,omitempty"`

	SelectedOffer           *coreapi.PotFactoryOffer    `json:"selectedOffer,omitempty"`
	CreateUserRequest       *coreapi.CreateUserRequest  `json:"createUserRequest,omitempty"`
	SelectedBankInstitution *coreapi.PaymentInstitution `json:"selectedBankInstitution,omitempty"`

	// Authorization links populated exclusively by push notifications and
	// consumed by read-only display steps.
	UserIdvCheckURL       string     `json:"userIdvCheckUrl,omitempty"`
	UserIdvCheckExpiresAt *time.Time `json:"userIdvCheckExpiresAt,omitempty"`
	BankAuthURL           string     `json:"bankAuthUrl,omitempty"`
	PaymentAuthURL        string     `json:"paymentAuthUrl,omitempty"`

	BankInstitutions []coreapi.PaymentInstitution `json:"bankInstitutions,omitempty"`

	// Error is the last action failure message, cleared at the start of each
	// action attempt.
	Error string `json:"error,omitempty"`
}

// NewWorkflowState initializes the aggregate for a session over the given
// catalog. When the factory carries exactly one offer it is preselected.
func NewWorkflowState(steps []Step, potFactory *coreapi.PotFactoryDetails, pot *coreapi.Pot) *WorkflowState {
	state := &WorkflowState{
		AvailableSteps: steps,
		ActionedSteps:  make(map[Step]bool),
		PotFactory:     potFactory,
		Pot:            pot,
	}
	if pot != nil {
		state.PotID = pot.ID
	}
	if potFactory != nil && len(potFactory.Offers) == 1 {
		state.SelectedOffer = &potFactory.Offers[0]
	}
	if len(steps) > 0 {
		first := steps[0]
		state.CurrentStep = &first
	}
	return state
}

// MarkActioned records that the step's side effect has been triggered.
func (s *WorkflowState) MarkActioned(step Step) {
	if s.ActionedSteps == nil {
		s.ActionedSteps = make(map[Step]bool)
	}
	s.ActionedSteps[step] = true
}

// Actioned reports whether the step has been actioned this session.
func (s *WorkflowState) Actioned(step Step) bool {
	return s.ActionedSteps[step]
}

// StepIndex returns the position of step within AvailableSteps, or -1.
func (s *WorkflowState) StepIndex(step Step) int {
	for i, candidate := range s.AvailableSteps {
		if candidate == step {
			return i
		}
	}
	return -1
}
