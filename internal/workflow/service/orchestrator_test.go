package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
	"github.com/pots-hq/pots/internal/retry"
	"github.com/pots-hq/pots/internal/workflow/model"
)

// fakeCoreAPI implements CoreAPI with programmable responses and per-method
// call counts.
type fakeCoreAPI struct {
	mu    sync.Mutex
	calls map[string]int
	order []string

	createUserErr      error
	userDetailsResults []*coreapi.UserDetails
	createPotBlock     chan struct{}
	acceptTermsErr     error
	depositErr         error
	institutions       []coreapi.PaymentInstitution
}

func newFakeCoreAPI() *fakeCoreAPI {
	return &fakeCoreAPI{calls: make(map[string]int)}
}

func (f *fakeCoreAPI) record(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	f.order = append(f.order, method)
	return f.calls[method]
}

func (f *fakeCoreAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeCoreAPI) CreateUser(ctx context.Context, req *coreapi.CreateUserRequest, token string) (string, error) {
	f.record("CreateUser")
	if f.createUserErr != nil {
		return "", f.createUserErr
	}
	return "u-new", nil
}

func (f *fakeCoreAPI) GetUserDetails(ctx context.Context, token string) (*coreapi.UserDetails, error) {
	n := f.record("GetUserDetails")
	if len(f.userDetailsResults) == 0 {
		return &coreapi.UserDetails{ID: "u-new", Status: coreapi.UserDraft}, nil
	}
	if n > len(f.userDetailsResults) {
		return f.userDetailsResults[len(f.userDetailsResults)-1], nil
	}
	return f.userDetailsResults[n-1], nil
}

func (f *fakeCoreAPI) StartVerification(ctx context.Context, token string) error {
	f.record("StartVerification")
	return nil
}

func (f *fakeCoreAPI) GetPaymentInstitutions(ctx context.Context, token string) ([]coreapi.PaymentInstitution, error) {
	f.record("GetPaymentInstitutions")
	return f.institutions, nil
}

func (f *fakeCoreAPI) LinkAccount(ctx context.Context, institutionID, token string) error {
	f.record("LinkAccount " + institutionID)
	return nil
}

func (f *fakeCoreAPI) CreatePot(ctx context.Context, req *coreapi.CreatePotRequest, token string) (string, error) {
	f.record("CreatePot")
	if f.createPotBlock != nil {
		<-f.createPotBlock
	}
	return "p-new", nil
}

func (f *fakeCoreAPI) GetPot(ctx context.Context, potID, token string) (*coreapi.Pot, error) {
	f.record("GetPot")
	return &coreapi.Pot{ID: potID, Status: coreapi.PotReadyToDeposit, DepositAmount: 25}, nil
}

func (f *fakeCoreAPI) AcceptTerms(ctx context.Context, potID, token string) error {
	f.record("AcceptTerms")
	return f.acceptTermsErr
}

func (f *fakeCoreAPI) Deposit(ctx context.Context, potID string, amount float64, token string) error {
	f.record(fmt.Sprintf("Deposit %.0f", amount))
	return f.depositErr
}

func (f *fakeCoreAPI) SendFunds(ctx context.Context, potID string, amount float64, token string) error {
	f.record(fmt.Sprintf("SendFunds %.0f", amount))
	return nil
}

type fakeTokens struct {
	mu        sync.Mutex
	skipCalls []bool
}

func (f *fakeTokens) GetToken(ctx context.Context, skipCache bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipCalls = append(f.skipCalls, skipCache)
	return "tok", nil
}

type fakeIdentity struct {
	mu      sync.Mutex
	subject string
	userID  string
	err     error
}

func (f *fakeIdentity) SetCoreUserID(subject, coreUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subject = subject
	f.userID = coreUserID
	return f.err
}

func orchestratorAt(step model.Step, api CoreAPI, tokens *fakeTokens, identity *fakeIdentity) (*Orchestrator, *Session) {
	session := NewSession("s-1", "auth0|user-1")
	state := model.NewWorkflowState(model.AllSteps, &coreapi.PotFactoryDetails{ID: "pf-1"}, nil)
	state.CurrentStep = &step
	orchestrator := NewOrchestrator(session, state, api, tokens, identity)
	orchestrator.SetRetryOptions(retry.Options{MaxRetries: 2, BaseDelay: time.Millisecond})
	return orchestrator, session
}

func TestFinancialDetailsAction(t *testing.T) {
	t.Run("Creates Account And Polls Details", func(t *testing.T) {
		api := newFakeCoreAPI()
		api.userDetailsResults = []*coreapi.UserDetails{nil, {ID: "u-new", Status: coreapi.UserDraft}}
		tokens := &fakeTokens{}
		identity := &fakeIdentity{}

		orchestrator, session := orchestratorAt(model.StepFinancialDetails, api, tokens, identity)
		orchestrator.SetCreateUserRequest(&coreapi.CreateUserRequest{FirstName: "Ada"})

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))

		assert.Equal(t, "u-new", session.UserID())
		require.NotNil(t, session.UserDetails())
		assert.Equal(t, "auth0|user-1", identity.subject)
		assert.Equal(t, "u-new", identity.userID)

		// One cached token for the action, one forced refresh after the
		// identity mapping changed.
		assert.Equal(t, []bool{false, true}, tokens.skipCalls)

		// Details were nil on the first poll, present on the second.
		assert.Equal(t, 2, api.count("GetUserDetails"))

		state := orchestrator.StateSnapshot()
		assert.Empty(t, state.Error)
		assert.True(t, state.Actioned(model.StepFinancialDetails))
	})

	t.Run("Failure Clears User Context And Keeps Step", func(t *testing.T) {
		api := newFakeCoreAPI()
		api.createUserErr = fmt.Errorf("boom")
		tokens := &fakeTokens{}
		identity := &fakeIdentity{}

		orchestrator, session := orchestratorAt(model.StepFinancialDetails, api, tokens, identity)
		orchestrator.SetCreateUserRequest(&coreapi.CreateUserRequest{FirstName: "Ada"})
		session.SetUserID("stale")
		session.SetBankAccount(&coreapi.BankAccount{ID: "stale"})

		require.Error(t, orchestrator.ExecuteStepAction(context.Background()))

		assert.Empty(t, session.UserID())
		assert.Nil(t, session.BankAccount())

		state := orchestrator.StateSnapshot()
		assert.Equal(t, "Failed to create user account", state.Error)
		require.NotNil(t, state.CurrentStep)
		assert.Equal(t, model.StepFinancialDetails, *state.CurrentStep)
	})

	t.Run("Error Cleared On Retry", func(t *testing.T) {
		api := newFakeCoreAPI()
		api.createUserErr = fmt.Errorf("boom")
		tokens := &fakeTokens{}
		identity := &fakeIdentity{}

		orchestrator, _ := orchestratorAt(model.StepFinancialDetails, api, tokens, identity)
		orchestrator.SetCreateUserRequest(&coreapi.CreateUserRequest{FirstName: "Ada"})

		require.Error(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.NotEmpty(t, orchestrator.StateSnapshot().Error)

		api.createUserErr = nil
		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Empty(t, orchestrator.StateSnapshot().Error)
	})
}

func TestExecuteStepActionIdempotence(t *testing.T) {
	api := newFakeCoreAPI()
	api.createPotBlock = make(chan struct{})

	orchestrator, _ := orchestratorAt(model.StepOfferReview, api, &fakeTokens{}, &fakeIdentity{})
	orchestrator.SetSelectedOffer(&coreapi.PotFactoryOffer{ID: "o-1", PotFactoryID: "pf-1", DepositAmount: 25})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orchestrator.ExecuteStepAction(context.Background())
	}()

	// Wait until the first action is inside CreatePot, then call again.
	require.Eventually(t, func() bool { return api.count("CreatePot") == 1 }, time.Second, time.Millisecond)
	require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
	assert.Equal(t, 1, api.count("CreatePot"))

	close(api.createPotBlock)
	<-done

	assert.Equal(t, 1, api.count("CreatePot"))
	state := orchestrator.StateSnapshot()
	assert.Equal(t, "p-new", state.PotID)
	require.NotNil(t, state.Pot)
}

func TestAcceptTermsAction(t *testing.T) {
	t.Run("Accepts Then Deposits", func(t *testing.T) {
		api := newFakeCoreAPI()
		orchestrator, _ := orchestratorAt(model.StepAcceptTerms, api, &fakeTokens{}, &fakeIdentity{})

		orchestrator.mu.Lock()
		orchestrator.state.Pot = &coreapi.Pot{ID: "p-1", DepositAmount: 25}
		orchestrator.mu.Unlock()

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))

		api.mu.Lock()
		order := append([]string(nil), api.order...)
		api.mu.Unlock()
		assert.Equal(t, []string{"AcceptTerms", "Deposit 25"}, order)
	})

	t.Run("No Rollback When Deposit Fails", func(t *testing.T) {
		api := newFakeCoreAPI()
		api.depositErr = fmt.Errorf("deposit window closed")
		orchestrator, _ := orchestratorAt(model.StepAcceptTerms, api, &fakeTokens{}, &fakeIdentity{})
		orchestrator.mu.Lock()
		orchestrator.state.Pot = &coreapi.Pot{ID: "p-1", DepositAmount: 25}
		orchestrator.mu.Unlock()

		require.Error(t, orchestrator.ExecuteStepAction(context.Background()))

		// Terms stay accepted; recovery is retrying the same step.
		assert.Equal(t, 1, api.count("AcceptTerms"))
		state := orchestrator.StateSnapshot()
		assert.Equal(t, "Failed to complete AcceptTerms step", state.Error)
		assert.Equal(t, model.StepAcceptTerms, *state.CurrentStep)
	})
}

func TestBankSteps(t *testing.T) {
	t.Run("Link Request Loads Institutions", func(t *testing.T) {
		api := newFakeCoreAPI()
		api.institutions = []coreapi.PaymentInstitution{{ID: "b-1"}}
		orchestrator, _ := orchestratorAt(model.StepBankAccountLinkRequest, api, &fakeTokens{}, &fakeIdentity{})

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Len(t, orchestrator.StateSnapshot().BankInstitutions, 1)
	})

	t.Run("Link Request Skipped When Already Linked", func(t *testing.T) {
		api := newFakeCoreAPI()
		orchestrator, session := orchestratorAt(model.StepBankAccountLinkRequest, api, &fakeTokens{}, &fakeIdentity{})
		session.SetBankAccount(&coreapi.BankAccount{ID: "b-1"})

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Equal(t, 0, api.count("GetPaymentInstitutions"))
	})

	t.Run("Bank Selection Links External ID", func(t *testing.T) {
		api := newFakeCoreAPI()
		orchestrator, _ := orchestratorAt(model.StepBankSelection, api, &fakeTokens{}, &fakeIdentity{})
		orchestrator.SetSelectedBankInstitution(&coreapi.PaymentInstitution{ID: "b-1", ExternalID: "ext-9"})

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Equal(t, 1, api.count("LinkAccount ext-9"))
	})
}

func TestMoveToNextStep(t *testing.T) {
	session := NewSession("s-1", "auth0|user-1")
	state := model.NewWorkflowState([]model.Step{model.StepWelcome, model.StepComplete}, nil, nil)
	orchestrator := NewOrchestrator(session, state, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})

	assert.False(t, orchestrator.MoveToNextStep())
	assert.Equal(t, model.StepComplete, *orchestrator.StateSnapshot().CurrentStep)

	// Advancing past the last step exits the workflow.
	assert.True(t, orchestrator.MoveToNextStep())
}

func TestEvaluateCurrentStepAppliesImplicitActions(t *testing.T) {
	session := NewSession("s-1", "auth0|user-1")
	state := model.NewWorkflowState(model.AllSteps, nil, nil)
	step := model.StepPaymentAuth
	state.CurrentStep = &step
	state.PotID = "p1"
	orchestrator := NewOrchestrator(session, state, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})

	assert.False(t, orchestrator.EvaluateCurrentStep(false).Complete)

	orchestrator.HandleNotification(notifications.PotNotification{PotID: "p1", Event: notifications.PotActive})

	verdict := orchestrator.EvaluateCurrentStep(false)
	assert.True(t, verdict.Complete)
	snapshot := orchestrator.StateSnapshot()
	assert.True(t, snapshot.Actioned(model.StepPaymentAuth))
}

func TestHandleNotification(t *testing.T) {
	t.Run("Payment Authorization Carries URL", func(t *testing.T) {
		orchestrator, _ := orchestratorAt(model.StepPaymentRequest, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})

		orchestrator.HandleNotification(notifications.PotNotification{
			PotID: "p1",
			Event: notifications.PotDepositAuthorizationRequested,
			Data:  &notifications.Payload{AuthorisationURL: "https://bank.example/pay"},
		})

		state := orchestrator.StateSnapshot()
		assert.Equal(t, notifications.PotDepositAuthorizationRequested, state.PotEvent)
		assert.Equal(t, "https://bank.example/pay", state.PaymentAuthURL)
	})

	t.Run("Idv Check Carries URL And Expiry", func(t *testing.T) {
		orchestrator, session := orchestratorAt(model.StepVerification, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})
		expiry := time.Now().Add(time.Hour)

		orchestrator.HandleNotification(notifications.UserNotification{
			UserID: "u-1",
			Event:  notifications.UserIdvCheckCreated,
			Data:   &notifications.Payload{IdvCheckURL: "https://idv.example/check", IdvCheckExpiresAt: &expiry},
		})

		state := orchestrator.StateSnapshot()
		assert.Equal(t, "https://idv.example/check", state.UserIdvCheckURL)
		require.NotNil(t, state.UserIdvCheckExpiresAt)
		assert.Equal(t, notifications.UserIdvCheckCreated, session.UserEvent())
	})

	t.Run("Bank Account Payload Updates Session", func(t *testing.T) {
		orchestrator, session := orchestratorAt(model.StepBankAuth, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})

		orchestrator.HandleNotification(notifications.UserNotification{
			UserID: "u-1",
			Event:  notifications.UserReadyToDeposit,
			Data:   &notifications.Payload{BankAccount: &coreapi.BankAccount{ID: "b-1"}},
		})

		require.NotNil(t, session.BankAccount())
		assert.Equal(t, notifications.UserReadyToDeposit, session.UserEvent())
	})

	t.Run("Withdrawal Events Do Not Touch Pot Event", func(t *testing.T) {
		orchestrator, _ := orchestratorAt(model.StepComplete, newFakeCoreAPI(), &fakeTokens{}, &fakeIdentity{})

		orchestrator.HandleNotification(notifications.PotNotification{
			PotID: "p1",
			Event: notifications.PotWithdrawalInitiated,
		})

		assert.Empty(t, orchestrator.StateSnapshot().PotEvent)
	})
}

func TestContinueVerificationAction(t *testing.T) {
	t.Run("Starts Verification For Existing User", func(t *testing.T) {
		api := newFakeCoreAPI()
		orchestrator, session := orchestratorAt(model.StepContinueVerification, api, &fakeTokens{}, &fakeIdentity{})
		session.SetUserID("u-1")

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Equal(t, 1, api.count("StartVerification"))
	})

	t.Run("Skipped Without A User", func(t *testing.T) {
		api := newFakeCoreAPI()
		orchestrator, _ := orchestratorAt(model.StepContinueVerification, api, &fakeTokens{}, &fakeIdentity{})

		require.NoError(t, orchestrator.ExecuteStepAction(context.Background()))
		assert.Equal(t, 0, api.count("StartVerification"))
	})
}
