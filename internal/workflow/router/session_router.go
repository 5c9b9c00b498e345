package router

import (
	"encoding/json"
	"net/http"

	"github.com/pots-hq/pots/internal/auth"
	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/workflow"
	"github.com/pots-hq/pots/internal/workflow/model"
	"github.com/pots-hq/pots/internal/workflow/service"
)

// SessionRouter exposes the onboarding workflow over HTTP. Every route
// requires an authenticated subject; the bearer token from each request is
// stored on the session so the orchestrator can call the core platform with
// the caller's credentials.
type SessionRouter struct {
	manager *workflow.Manager
}

// NewSessionRouter creates a new SessionRouter instance
func NewSessionRouter(manager *workflow.Manager) *SessionRouter {
	return &SessionRouter{manager: manager}
}

type startSessionRequest struct {
	PotFactoryID string `json:"potFactoryId"`
}

type resumeSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type sessionResponse struct {
	SessionID    string              `json:"sessionId"`
	State        model.WorkflowState `json:"state"`
	StepComplete bool                `json:"stepComplete"`
}

type advanceResponse struct {
	SessionID string              `json:"sessionId"`
	State     model.WorkflowState `json:"state"`
	Exited    bool                `json:"exited"`
}

type selectOfferRequest struct {
	OfferID string `json:"offerId"`
}

type selectBankRequest struct {
	InstitutionID string `json:"institutionId"`
}

// HandleStartSession handles POST /api/sessions
// Request body: startSessionRequest
// Response: sessionResponse
func (sr *SessionRouter) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.PotFactoryID == "" {
		http.Error(w, "potFactoryId is required", http.StatusBadRequest)
		return
	}

	orchestrator, err := sr.manager.StartSession(r.Context(), authCtx.Subject, authCtx.Token, req.PotFactoryID)
	if err != nil {
		http.Error(w, "failed to start session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sr.writeSession(w, http.StatusCreated, orchestrator)
}

// HandleResumeSession handles POST /api/sessions/resume
// Request body: resumeSessionRequest
// Response: sessionResponse
func (sr *SessionRouter) HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req resumeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	orchestrator, err := sr.manager.ResumeSession(r.Context(), req.SessionID, authCtx.Subject, authCtx.Token)
	if err != nil {
		http.Error(w, "failed to resume session: "+err.Error(), http.StatusNotFound)
		return
	}

	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleGetSession handles GET /api/sessions/{sessionID}
// Response: sessionResponse
func (sr *SessionRouter) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}
	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleStepAction handles POST /api/sessions/{sessionID}/action
// Runs the current step's side effect; the response carries the refreshed
// state, including any recorded step error.
func (sr *SessionRouter) HandleStepAction(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	// Action failures are part of the workflow state, not HTTP errors: the
	// UI renders state.error and the user retries.
	_ = orchestrator.ExecuteStepAction(r.Context())

	if err := sr.manager.SaveSnapshot(orchestrator.Session().ID); err != nil {
		http.Error(w, "failed to persist session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleAdvance handles POST /api/sessions/{sessionID}/advance
// Advances to the next step once the oracle reports the current one
// complete.
func (sr *SessionRouter) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	verdict := orchestrator.EvaluateCurrentStep(orchestrator.ActionInProgress())
	if !verdict.Complete {
		http.Error(w, "current step is not complete", http.StatusConflict)
		return
	}

	exited := orchestrator.MoveToNextStep()

	sessionID := orchestrator.Session().ID
	if exited {
		sr.manager.EndSession(sessionID)
	} else if err := sr.manager.SaveSnapshot(sessionID); err != nil {
		http.Error(w, "failed to persist session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(advanceResponse{
		SessionID: sessionID,
		State:     orchestrator.StateSnapshot(),
		Exited:    exited,
	}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandleSelectOffer handles PUT /api/sessions/{sessionID}/offer
// Request body: selectOfferRequest; the offer must belong to the session's
// pot factory.
func (sr *SessionRouter) HandleSelectOffer(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req selectOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	state := orchestrator.StateSnapshot()
	offer := findOffer(state.PotFactory, req.OfferID)
	if offer == nil {
		http.Error(w, "unknown offer: "+req.OfferID, http.StatusBadRequest)
		return
	}

	orchestrator.SetSelectedOffer(offer)
	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleSelectBank handles PUT /api/sessions/{sessionID}/bank
// Request body: selectBankRequest; the institution must come from the list
// loaded on the link-request step.
func (sr *SessionRouter) HandleSelectBank(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req selectBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	state := orchestrator.StateSnapshot()
	institution := findInstitution(state.BankInstitutions, req.InstitutionID)
	if institution == nil {
		http.Error(w, "unknown institution: "+req.InstitutionID, http.StatusBadRequest)
		return
	}

	orchestrator.SetSelectedBankInstitution(institution)
	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleSetUserDraft handles PUT /api/sessions/{sessionID}/user-draft
// Request body: coreapi.CreateUserRequest captured by the detail forms.
func (sr *SessionRouter) HandleSetUserDraft(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req coreapi.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	orchestrator.SetCreateUserRequest(&req)
	sr.writeSession(w, http.StatusOK, orchestrator)
}

// HandleEndSession handles DELETE /api/sessions/{sessionID}
func (sr *SessionRouter) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := sr.sessionFromRequest(w, r)
	if !ok {
		return
	}

	sr.manager.EndSession(orchestrator.Session().ID)
	w.WriteHeader(http.StatusNoContent)
}

// sessionFromRequest resolves the session in the path, checks it belongs to
// the authenticated subject, and refreshes the session's bearer token.
func (sr *SessionRouter) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*service.Orchestrator, bool) {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}

	sessionID := r.PathValue("sessionID")
	if sessionID == "" {
		http.Error(w, "session ID is required", http.StatusBadRequest)
		return nil, false
	}

	orchestrator, ok := sr.manager.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if orchestrator.Session().Subject != authCtx.Subject {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}

	orchestrator.Session().SetToken(authCtx.Token)
	return orchestrator, true
}

func (sr *SessionRouter) writeSession(w http.ResponseWriter, status int, orchestrator *service.Orchestrator) {
	verdict := orchestrator.EvaluateCurrentStep(orchestrator.ActionInProgress())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(sessionResponse{
		SessionID:    orchestrator.Session().ID,
		State:        orchestrator.StateSnapshot(),
		StepComplete: verdict.Complete,
	}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func findOffer(factory *coreapi.PotFactoryDetails, offerID string) *coreapi.PotFactoryOffer {
	if factory == nil {
		return nil
	}
	for i := range factory.Offers {
		if factory.Offers[i].ID == offerID {
			return &factory.Offers[i]
		}
	}
	return nil
}

func findInstitution(institutions []coreapi.PaymentInstitution, institutionID string) *coreapi.PaymentInstitution {
	for i := range institutions {
		if institutions[i].ID == institutionID {
			return &institutions[i]
		}
	}
	return nil
}
