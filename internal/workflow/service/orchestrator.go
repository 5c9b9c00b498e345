package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pots-hq/pots/internal/auth"
	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
	"github.com/pots-hq/pots/internal/retry"
	"github.com/pots-hq/pots/internal/workflow/model"
)

// CoreAPI is the slice of the core platform client the orchestrator drives.
type CoreAPI interface {
	CreateUser(ctx context.Context, req *coreapi.CreateUserRequest, token string) (string, error)
	GetUserDetails(ctx context.Context, token string) (*coreapi.UserDetails, error)
	StartVerification(ctx context.Context, token string) error
	GetPaymentInstitutions(ctx context.Context, token string) ([]coreapi.PaymentInstitution, error)
	LinkAccount(ctx context.Context, institutionID, token string) error
	CreatePot(ctx context.Context, req *coreapi.CreatePotRequest, token string) (string, error)
	GetPot(ctx context.Context, potID, token string) (*coreapi.Pot, error)
	AcceptTerms(ctx context.Context, potID, token string) error
	Deposit(ctx context.Context, potID string, amount float64, token string) error
	SendFunds(ctx context.Context, potID string, amount float64, token string) error
}

// IdentityStore persists the mapping from an identity subject to the core
// platform user id.
type IdentityStore interface {
	SetCoreUserID(subject, coreUserID string) error
}

// Orchestrator owns the workflow state for one onboarding session. It
// executes the side-effecting action of the current step, applies the
// oracle's verdicts, advances the step pointer, and folds bridge
// notifications into state.
type Orchestrator struct {
	session  *Session
	api      CoreAPI
	tokens   auth.TokenProvider
	identity IdentityStore

	retryOpts retry.Options

	mu               sync.Mutex
	state            *model.WorkflowState
	actionInProgress bool
}

// NewOrchestrator wires an orchestrator over an initialized state aggregate.
func NewOrchestrator(session *Session, state *model.WorkflowState, api CoreAPI, tokens auth.TokenProvider, identity IdentityStore) *Orchestrator {
	return &Orchestrator{
		session:   session,
		api:       api,
		tokens:    tokens,
		identity:  identity,
		retryOpts: retry.DefaultOptions,
		state:     state,
	}
}

// SetRetryOptions overrides the backoff used when polling for just-created
// resources.
func (o *Orchestrator) SetRetryOptions(opts retry.Options) {
	o.retryOpts = opts
}

// Session returns the session context this orchestrator drives.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// StateSnapshot returns a copy of the current workflow state for read-only
// consumers.
func (o *Orchestrator) StateSnapshot() model.WorkflowState {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := *o.state
	snapshot.ActionedSteps = make(map[model.Step]bool, len(o.state.ActionedSteps))
	for step, actioned := range o.state.ActionedSteps {
		snapshot.ActionedSteps[step] = actioned
	}
	if o.state.CurrentStep != nil {
		current := *o.state.CurrentStep
		snapshot.CurrentStep = &current
	}
	return snapshot
}

// ActionInProgress reports whether a step action is currently in flight.
func (o *Orchestrator) ActionInProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.actionInProgress
}

// ExecuteStepAction runs the current step's side effect. It is a no-op when
// an action is already in flight; that guard, not cancellation, is what
// prevents duplicate submission. The step is marked actioned optimistically
// and the previous error is cleared before the dispatch. A failed action
// records a fixed per-step message and leaves the current step unchanged,
// so the user can retry.
func (o *Orchestrator) ExecuteStepAction(ctx context.Context) error {
	o.mu.Lock()
	if o.actionInProgress || o.state.CurrentStep == nil {
		o.mu.Unlock()
		return nil
	}
	o.actionInProgress = true
	step := *o.state.CurrentStep
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.actionInProgress = false
		o.mu.Unlock()
	}()

	token, err := o.tokens.GetToken(ctx, false)
	if err != nil || token == "" {
		return fmt.Errorf("no bearer token for step action: %w", err)
	}

	o.mu.Lock()
	o.state.Error = ""
	o.state.MarkActioned(step)
	o.mu.Unlock()

	if err := o.dispatch(ctx, step, token); err != nil {
		o.mu.Lock()
		if o.state.Error == "" {
			o.state.Error = fmt.Sprintf("Failed to complete %s step", step)
		}
		o.mu.Unlock()
		slog.Warn("step action failed",
			"session_id", o.session.ID,
			"step", step.String(),
			"error", err,
		)
		return err
	}

	return nil
}

// dispatch runs the network side effect for a step. Steps absent from the
// switch are pure gating/display steps with no side effect.
func (o *Orchestrator) dispatch(ctx context.Context, step model.Step, token string) error {
	switch step {
	case model.StepFinancialDetails:
		return o.actionFinancialDetails(ctx, token)
	case model.StepContinueVerification:
		return o.actionContinueVerification(ctx, token)
	case model.StepOfferReview:
		return o.actionOfferReview(ctx, token)
	case model.StepAcceptTerms:
		return o.actionAcceptTerms(ctx, token)
	case model.StepBankAccountLinkRequest:
		return o.actionBankAccountLinkRequest(ctx, token)
	case model.StepBankSelection:
		return o.actionBankSelection(ctx, token)
	case model.StepPaymentRequest:
		return o.actionPaymentRequest(ctx, token)
	default:
		return nil
	}
}

// actionFinancialDetails creates the core platform account, persists the new
// user id into the identity mapping, forces a token refresh so the new claim
// is visible, then polls user details until the account materializes. On any
// failure the session's user id and bank account are cleared so the step can
// be retried from scratch.
func (o *Orchestrator) actionFinancialDetails(ctx context.Context, token string) error {
	o.mu.Lock()
	draft := o.state.CreateUserRequest
	o.mu.Unlock()

	fail := func(err error) error {
		o.mu.Lock()
		o.state.Error = "Failed to create user account"
		o.mu.Unlock()
		o.session.SetUserID("")
		o.session.SetBankAccount(nil)
		return err
	}

	if draft == nil {
		return fail(fmt.Errorf("no user details captured"))
	}

	userID, err := o.api.CreateUser(ctx, draft, token)
	if err != nil {
		return fail(err)
	}

	if err := o.identity.SetCoreUserID(o.session.Subject, userID); err != nil {
		return fail(err)
	}

	// The cached token predates the identity mapping; skip the cache so the
	// next calls carry the new user claim.
	freshToken, err := o.tokens.GetToken(ctx, true)
	if err != nil || freshToken == "" {
		freshToken = token
	}

	o.session.SetUserID(userID)

	details, err := retry.Do(ctx, o.retryOpts,
		func(ctx context.Context) (*coreapi.UserDetails, error) {
			return o.api.GetUserDetails(ctx, freshToken)
		},
		func(details *coreapi.UserDetails) bool { return details == nil },
	)
	if err != nil {
		return fail(err)
	}
	if details != nil {
		o.session.SetUserDetails(details)
	}

	return nil
}

func (o *Orchestrator) actionContinueVerification(ctx context.Context, token string) error {
	if o.session.UserID() == "" {
		return nil
	}
	if err := o.api.StartVerification(ctx, token); err != nil {
		o.mu.Lock()
		o.state.Error = "Failed to start verification process"
		o.mu.Unlock()
		return err
	}
	return nil
}

// actionOfferReview creates the pot from the selected offer and polls it
// until it materializes, recording the new pot id on the state.
func (o *Orchestrator) actionOfferReview(ctx context.Context, token string) error {
	o.mu.Lock()
	factory := o.state.PotFactory
	offer := o.state.SelectedOffer
	o.mu.Unlock()

	if factory == nil || offer == nil {
		return nil
	}

	potID, err := o.api.CreatePot(ctx, &coreapi.CreatePotRequest{
		PotFactoryID:      offer.PotFactoryID,
		DepositAmount:     offer.DepositAmount,
		Price:             offer.Price,
		IsNewMerchantUser: offer.IsNewMerchantUser,
	}, token)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.PotID = potID
	o.mu.Unlock()

	pot, err := retry.Do(ctx, o.retryOpts,
		func(ctx context.Context) (*coreapi.Pot, error) {
			return o.api.GetPot(ctx, potID, token)
		},
		func(pot *coreapi.Pot) bool { return pot == nil },
	)
	if err != nil {
		return err
	}
	if pot != nil {
		o.mu.Lock()
		o.state.Pot = pot
		o.mu.Unlock()
	}

	return nil
}

// actionAcceptTerms accepts the pot's terms and immediately initiates the
// deposit. The two calls have no compensating action: if the deposit fails
// after terms were accepted, recovery is retrying this step and relying on
// the platform's idempotency.
func (o *Orchestrator) actionAcceptTerms(ctx context.Context, token string) error {
	o.mu.Lock()
	pot := o.state.Pot
	o.mu.Unlock()

	if pot == nil || pot.ID == "" {
		return nil
	}

	if err := o.api.AcceptTerms(ctx, pot.ID, token); err != nil {
		return err
	}

	return o.api.Deposit(ctx, pot.ID, pot.DepositAmount, token)
}

// actionBankAccountLinkRequest loads the institution list, skipped entirely
// when a bank account is already linked.
func (o *Orchestrator) actionBankAccountLinkRequest(ctx context.Context, token string) error {
	if o.session.BankAccount() != nil {
		return nil
	}

	institutions, err := o.api.GetPaymentInstitutions(ctx, token)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.BankInstitutions = institutions
	o.mu.Unlock()

	return nil
}

func (o *Orchestrator) actionBankSelection(ctx context.Context, token string) error {
	o.mu.Lock()
	selected := o.state.SelectedBankInstitution
	o.mu.Unlock()

	if selected == nil {
		return nil
	}

	return o.api.LinkAccount(ctx, selected.ExternalID, token)
}

func (o *Orchestrator) actionPaymentRequest(ctx context.Context, token string) error {
	o.mu.Lock()
	pot := o.state.Pot
	o.mu.Unlock()

	if pot == nil || pot.ID == "" || pot.DepositAmount == 0 {
		return nil
	}

	return o.api.SendFunds(ctx, pot.ID, pot.DepositAmount, token)
}

// EvaluateCurrentStep runs the completion oracle for the current step and
// applies any implicit actions (BankAuth/PaymentAuth promote themselves once
// the out-of-band authorization lands).
func (o *Orchestrator) EvaluateCurrentStep(isLoading bool) Completion {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.CurrentStep == nil {
		return Completion{}
	}

	verdict := EvaluateStep(*o.state.CurrentStep, o.state, o.session, isLoading)
	for _, step := range verdict.ImplicitActions {
		o.state.MarkActioned(step)
	}
	return verdict
}

// MoveToNextStep advances the step pointer. It returns true when the catalog
// is exhausted, i.e. the session leaves the workflow.
func (o *Orchestrator) MoveToNextStep() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.CurrentStep == nil {
		return false
	}

	next := o.state.StepIndex(*o.state.CurrentStep) + 1
	if next < len(o.state.AvailableSteps) {
		step := o.state.AvailableSteps[next]
		o.state.CurrentStep = &step
		return false
	}

	return next == len(o.state.AvailableSteps)
}

// SetSelectedOffer records the offer chosen on the offer-selection step.
func (o *Orchestrator) SetSelectedOffer(offer *coreapi.PotFactoryOffer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.SelectedOffer = offer
}

// SetSelectedBankInstitution records the bank chosen on the bank-selection
// step.
func (o *Orchestrator) SetSelectedBankInstitution(institution *coreapi.PaymentInstitution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.SelectedBankInstitution = institution
}

// SetCreateUserRequest records the account draft captured by the personal
// details, address and financial details forms.
func (o *Orchestrator) SetCreateUserRequest(req *coreapi.CreateUserRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.CreateUserRequest = req
}

// HandleNotification folds a bridge notification into session and workflow
// state. User events update the session context and capture authorization
// links; pot lifecycle events update the notified pot status, letting the
// oracle observe transitions a poll might have missed.
func (o *Orchestrator) HandleNotification(n notifications.Notification) {
	switch event := n.(type) {
	case notifications.UserNotification:
		o.handleUserNotification(event)
	case notifications.PotNotification:
		o.handlePotNotification(event)
	}
}

func (o *Orchestrator) handleUserNotification(n notifications.UserNotification) {
	o.session.SetUserEvent(n.Event)

	if n.Data != nil && n.Data.BankAccount != nil {
		o.session.SetBankAccount(n.Data.BankAccount)
	}

	switch n.Event {
	case notifications.UserIdvCheckCreated:
		if n.Data != nil {
			o.mu.Lock()
			o.state.UserIdvCheckURL = n.Data.IdvCheckURL
			o.state.UserIdvCheckExpiresAt = n.Data.IdvCheckExpiresAt
			o.mu.Unlock()
		}
	case notifications.UserAccountAuthorizationRequested:
		if n.Data != nil {
			o.mu.Lock()
			o.state.BankAuthURL = n.Data.AuthorisationURL
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) handlePotNotification(n notifications.PotNotification) {
	switch n.Event {
	case notifications.PotDraft,
		notifications.PotReadyToDeposit,
		notifications.PotTermsAccepted,
		notifications.PotDepositInitiated,
		notifications.PotDepositCompleted,
		notifications.PotActive:
		o.mu.Lock()
		o.state.PotEvent = n.Event
		o.mu.Unlock()
	case notifications.PotDepositAuthorizationRequested:
		o.mu.Lock()
		o.state.PotEvent = n.Event
		if n.Data != nil {
			o.state.PaymentAuthURL = n.Data.AuthorisationURL
		}
		o.mu.Unlock()
	}
}
