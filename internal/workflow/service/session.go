package service

import (
	"sync"

	"github.com/pots-hq/pots/internal/coreapi"
	"github.com/pots-hq/pots/internal/notifications"
)

// Session is the per-onboarding user context: the core user id, the latest
// fetched user details and bank account, and the last user lifecycle event
// pushed over the bridge. It replaces any notion of process-global user
// state; every reader and writer goes through one Session instance with
// defined ownership.
type Session struct {
	// ID is the session identifier; Subject is the identity-provider subject
	// driving this onboarding. Both are immutable after creation.
	ID      string
	Subject string

	mu          sync.RWMutex
	userID      string
	userDetails *coreapi.UserDetails
	bankAccount *coreapi.BankAccount
	userEvent   notifications.UserEvent
	token       string
}

// NewSession creates a session context for an identity subject.
func NewSession(id, subject string) *Session {
	return &Session{ID: id, Subject: subject}
}

// UserID returns the core platform user id, or "" before account creation.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUserID records the core platform user id. Pass "" to clear it after a
// failed account creation.
func (s *Session) SetUserID(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// UserDetails returns the last fetched user details, or nil.
func (s *Session) UserDetails() *coreapi.UserDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userDetails
}

// SetUserDetails stores a freshly fetched user snapshot.
func (s *Session) SetUserDetails(details *coreapi.UserDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userDetails = details
}

// BankAccount returns the linked bank account, or nil.
func (s *Session) BankAccount() *coreapi.BankAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bankAccount
}

// SetBankAccount stores (or clears) the linked bank account.
func (s *Session) SetBankAccount(account *coreapi.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bankAccount = account
}

// UserEvent returns the last user lifecycle event seen on the bridge.
func (s *Session) UserEvent() notifications.UserEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userEvent
}

// SetUserEvent records a user lifecycle event from the bridge.
func (s *Session) SetUserEvent(event notifications.UserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userEvent = event
}

// Token returns the most recent bearer token presented for this session.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores the bearer token from the latest request so background
// work (polling, notification-driven fetches) can authenticate.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Reset clears all user context, used at logout/teardown.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.userDetails = nil
	s.bankAccount = nil
	s.userEvent = ""
	s.token = ""
}
