package service

import (
	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
	"github.com/pots-hq/pots/internal/workflow/model"
)

// Completion is the oracle's verdict for one step. The oracle itself never
// mutates state: steps whose completion is driven by an out-of-band signal
// (BankAuth, PaymentAuth have no in-app action to press) are reported in
// ImplicitActions, and the orchestrator records them as actioned.
type Completion struct {
	Complete        bool
	ImplicitActions []model.Step
}

// EvaluateStep decides whether a step's exit condition holds. Completion
// requires the step's semantic condition, the step having been actioned, and
// no request in flight. Status conditions accept either the polled entity
// status or the corresponding bridge event; either source of truth suffices,
// which tolerates a missed push notification.
func EvaluateStep(step model.Step, state *model.WorkflowState, session *Session, isLoading bool) Completion {
	switch step {
	case model.StepWelcome:
		return explicit(step, state, isLoading, state.PotFactory != nil)

	case model.StepPersonalDetails, model.StepAddress:
		// Pure data-capture steps, validated by their own forms.
		return explicit(step, state, isLoading, true)

	case model.StepFinancialDetails:
		return explicit(step, state, isLoading, session.UserID() != "")

	case model.StepContinueVerification:
		condition := session.UserID() != "" && verificationInProgress(session)
		return explicit(step, state, isLoading, condition)

	case model.StepVerification:
		return explicit(step, state, isLoading, userVerified(session))

	case model.StepOfferSelection:
		return explicit(step, state, isLoading, state.SelectedOffer != nil)

	case model.StepOfferReview:
		condition := state.PotID != "" && potHasStatus(state, coreapi.PotReadyToDeposit, notifications.PotReadyToDeposit)
		return explicit(step, state, isLoading, condition)

	case model.StepAcceptTerms:
		return explicit(step, state, isLoading, canAcceptTerms(state, session))

	case model.StepBankAccountLinkRequest:
		return explicit(step, state, isLoading, len(state.BankInstitutions) > 0)

	case model.StepBankSelection:
		return explicit(step, state, isLoading, state.SelectedBankInstitution != nil)

	case model.StepBankAuth:
		return implicit(step, state, isLoading, bankAuthorized(session))

	case model.StepPaymentRequest:
		condition := potHasStatus(state, coreapi.PotDepositInitiated, notifications.PotDepositAuthorizationRequested)
		return explicit(step, state, isLoading, condition)

	case model.StepPaymentAuth:
		return implicit(step, state, isLoading, potActive(state))

	case model.StepComplete:
		return explicit(step, state, isLoading, potActive(state))

	default:
		return Completion{}
	}
}

// explicit is the standard verdict: semantic condition AND actioned AND not
// loading.
func explicit(step model.Step, state *model.WorkflowState, isLoading, condition bool) Completion {
	return Completion{Complete: condition && state.Actioned(step) && !isLoading}
}

// implicit covers steps completed by an external redirect-and-callback flow:
// once the out-of-band signal arrives the step is promoted to actioned.
func implicit(step model.Step, state *model.WorkflowState, isLoading, condition bool) Completion {
	verdict := Completion{Complete: condition && !isLoading}
	if condition && !state.Actioned(step) {
		verdict.ImplicitActions = []model.Step{step}
	}
	return verdict
}

func verificationInProgress(session *Session) bool {
	details := session.UserDetails()
	event := session.UserEvent()
	return (details != nil && details.Status == coreapi.UserVerificationInProgress) ||
		event == notifications.UserVerificationInProgress ||
		event == notifications.UserIdvCheckCreated
}

func userVerified(session *Session) bool {
	details := session.UserDetails()
	return (details != nil && details.Status == coreapi.UserVerified) ||
		session.UserEvent() == notifications.UserVerified
}

func userReadyToDeposit(session *Session) bool {
	details := session.UserDetails()
	event := session.UserEvent()
	return (details != nil && (details.Status == coreapi.UserActive || details.Status == coreapi.UserReadyToDeposit)) ||
		event == notifications.UserActive ||
		event == notifications.UserReadyToDeposit
}

func bankAuthorized(session *Session) bool {
	return session.BankAccount() != nil || userReadyToDeposit(session)
}

func potHasStatus(state *model.WorkflowState, polled coreapi.PotStatus, notified notifications.PotEvent) bool {
	return (state.Pot != nil && state.Pot.Status == polled) || state.PotEvent == notified
}

func potActive(state *model.WorkflowState) bool {
	return potHasStatus(state, coreapi.PotActive, notifications.PotActive)
}

func canAcceptTerms(state *model.WorkflowState, session *Session) bool {
	potReady := potHasStatus(state, coreapi.PotDepositInitiated, notifications.PotDepositInitiated) ||
		potActive(state) ||
		(state.Pot != nil && state.Pot.TermsAccepted) ||
		state.PotEvent == notifications.PotTermsAccepted
	return userReadyToDeposit(session) && potReady
}
