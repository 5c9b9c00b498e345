package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
	"github.com/pots-hq/pots/internal/workflow/model"
	"github.com/pots-hq/pots/internal/workflow/service"
)

// CoreAPI is the slice of the core platform client the manager needs: the
// orchestrator surface plus the snapshot fetches used to bootstrap a session
// catalog.
type CoreAPI interface {
	service.CoreAPI
	GetPotFactoryDetails(ctx context.Context, potFactoryID, token string) (*coreapi.PotFactoryDetails, error)
	GetUserBankAccount(ctx context.Context, token string) (*coreapi.BankAccount, error)
	GetUserPots(ctx context.Context, token string) ([]coreapi.Pot, error)
}

type sessionEntry struct {
	orchestrator *service.Orchestrator
	potFactoryID string
}

// Manager is the registry of live onboarding sessions. It bootstraps each
// session's catalog from a core platform snapshot, routes bridge
// notifications to the session tracking the affected entity, and persists
// snapshots so sessions survive restarts.
type Manager struct {
	api       CoreAPI
	bridge    *notifications.Bridge
	snapshots *service.SnapshotRepository
	identity  service.IdentityStore

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	sub      *notifications.Subscription
}

// NewManager creates a session manager.
func NewManager(api CoreAPI, bridge *notifications.Bridge, snapshots *service.SnapshotRepository, identity service.IdentityStore) *Manager {
	return &Manager{
		api:       api,
		bridge:    bridge,
		snapshots: snapshots,
		identity:  identity,
		sessions:  make(map[string]*sessionEntry),
	}
}

// Start subscribes the manager to the notification bridge and brings the
// transport up.
func (m *Manager) Start(ctx context.Context) {
	m.sub = m.bridge.Subscribe(m.routeNotification)
	m.bridge.Connect(ctx)
	slog.Info("workflow manager started")
}

// Stop unsubscribes from the bridge and tears the transport down.
func (m *Manager) Stop() {
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
	m.bridge.Disconnect()

	m.mu.Lock()
	for _, entry := range m.sessions {
		entry.orchestrator.Session().Reset()
	}
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	slog.Info("workflow manager stopped")
}

// StartSession bootstraps a new onboarding session for a subject and pot
// factory: it fetches the current user/pot/bank-account view, derives the
// step catalog from it, and registers an orchestrator for the session.
func (m *Manager) StartSession(ctx context.Context, subject, token, potFactoryID string) (*service.Orchestrator, error) {
	factory, err := m.api.GetPotFactoryDetails(ctx, potFactoryID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load pot factory %s: %w", potFactoryID, err)
	}
	if factory == nil {
		return nil, fmt.Errorf("pot factory %s not found", potFactoryID)
	}

	user, err := m.api.GetUserDetails(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load user details: %w", err)
	}

	var bankAccount *coreapi.BankAccount
	var pot *coreapi.Pot
	if user != nil {
		bankAccount, err = m.api.GetUserBankAccount(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to load bank account: %w", err)
		}

		pots, err := m.api.GetUserPots(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to load user pots: %w", err)
		}
		pot = findFactoryPot(pots, potFactoryID)
	}

	input := model.CatalogInputFromSnapshot(user, pot, bankAccount, factory)
	steps := model.BuildCatalog(input)
	state := model.NewWorkflowState(steps, factory, pot)

	session := service.NewSession(uuid.NewString(), subject)
	session.SetToken(token)
	if user != nil {
		session.SetUserID(user.ID)
		session.SetUserDetails(user)
	}
	session.SetBankAccount(bankAccount)

	orchestrator := service.NewOrchestrator(session, state, m.api, service.NewSessionTokenProvider(session), m.identity)

	m.mu.Lock()
	m.sessions[session.ID] = &sessionEntry{orchestrator: orchestrator, potFactoryID: potFactoryID}
	m.mu.Unlock()

	if err := m.persist(session, potFactoryID, state); err != nil {
		slog.Warn("failed to persist initial session snapshot",
			"session_id", session.ID,
			"error", err,
		)
	}

	slog.Info("onboarding session started",
		"session_id", session.ID,
		"subject", subject,
		"pot_factory_id", potFactoryID,
		"steps", len(steps),
	)

	return orchestrator, nil
}

// ResumeSession restores a persisted session into the registry. The user
// and bank-account context are refreshed from the platform rather than
// trusted from the snapshot.
func (m *Manager) ResumeSession(ctx context.Context, sessionID, subject, token string) (*service.Orchestrator, error) {
	if orchestrator, ok := m.Get(sessionID); ok {
		if orchestrator.Session().Subject != subject {
			return nil, fmt.Errorf("session %s does not belong to subject", sessionID)
		}
		orchestrator.Session().SetToken(token)
		return orchestrator, nil
	}

	if m.snapshots == nil {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}

	record, state, err := m.snapshots.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session %s: %w", sessionID, err)
	}
	if record.Subject != subject {
		return nil, fmt.Errorf("session %s does not belong to subject", sessionID)
	}

	session := service.NewSession(record.ID, record.Subject)
	session.SetToken(token)
	session.SetUserID(record.UserID)

	if user, err := m.api.GetUserDetails(ctx, token); err == nil && user != nil {
		session.SetUserID(user.ID)
		session.SetUserDetails(user)
	} else if err != nil {
		slog.Warn("failed to refresh user details on resume", "session_id", sessionID, "error", err)
	}
	if bankAccount, err := m.api.GetUserBankAccount(ctx, token); err == nil {
		session.SetBankAccount(bankAccount)
	}

	orchestrator := service.NewOrchestrator(session, state, m.api, service.NewSessionTokenProvider(session), m.identity)

	m.mu.Lock()
	m.sessions[session.ID] = &sessionEntry{orchestrator: orchestrator, potFactoryID: record.PotFactoryID}
	m.mu.Unlock()

	slog.Info("onboarding session resumed", "session_id", sessionID)

	return orchestrator, nil
}

// Get returns the live orchestrator for a session id.
func (m *Manager) Get(sessionID string) (*service.Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return entry.orchestrator, true
}

// SaveSnapshot persists the current state of a live session.
func (m *Manager) SaveSnapshot(sessionID string) error {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}

	state := entry.orchestrator.StateSnapshot()
	return m.persist(entry.orchestrator.Session(), entry.potFactoryID, &state)
}

// persist writes a snapshot when a repository is configured. Sessions still
// work in-memory without one.
func (m *Manager) persist(session *service.Session, potFactoryID string, state *model.WorkflowState) error {
	if m.snapshots == nil {
		return nil
	}
	return m.snapshots.Save(session, potFactoryID, state)
}

// EndSession removes a session from the registry and deletes its snapshot.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		entry.orchestrator.Session().Reset()
	}
	if m.snapshots != nil {
		if err := m.snapshots.Delete(sessionID); err != nil {
			slog.Warn("failed to delete session snapshot", "session_id", sessionID, "error", err)
		}
	}

	slog.Info("onboarding session ended", "session_id", sessionID)
}

// routeNotification delivers a bridge notification to the sessions tracking
// the affected entity. User events route by core user id, pot events by the
// session's pot id.
func (m *Manager) routeNotification(n notifications.Notification) {
	m.mu.RLock()
	targets := make([]*service.Orchestrator, 0, 1)
	switch event := n.(type) {
	case notifications.UserNotification:
		for _, entry := range m.sessions {
			if entry.orchestrator.Session().UserID() == event.UserID {
				targets = append(targets, entry.orchestrator)
			}
		}
	case notifications.PotNotification:
		for _, entry := range m.sessions {
			state := entry.orchestrator.StateSnapshot()
			if state.PotID == event.PotID {
				targets = append(targets, entry.orchestrator)
			}
		}
	}
	m.mu.RUnlock()

	for _, orchestrator := range targets {
		orchestrator.HandleNotification(n)
	}
}

// findFactoryPot picks the subject's live pot for a factory, ignoring
// abandoned ones.
func findFactoryPot(pots []coreapi.Pot, potFactoryID string) *coreapi.Pot {
	for i := range pots {
		if pots[i].PotFactoryID == potFactoryID && pots[i].Status != coreapi.PotAbandoned {
			return &pots[i]
		}
	}
	return nil
}
