package notifications

import (
	"encoding/json"
	"time"

	"github.com/pots-hq/pots/internal/coreapi"
)

// EntityType discriminates notification envelopes by the entity they concern.
type EntityType string

const (
	EntityUser EntityType = "User"
	EntityPot  EntityType = "Pot"
)

// UserEvent is a status transition pushed for a user.
type UserEvent string

const (
	UserCreated                       UserEvent = "user-created"
	UserReadyToVerify                 UserEvent = "user-ready-to-verify"
	UserVerificationInProgress        UserEvent = "user-verification-in-progress"
	UserIdvCheckCreated               UserEvent = "user-idv-check-created"
	UserVerified                      UserEvent = "user-verified"
	UserRejected                      UserEvent = "user-rejected"
	UserActive                        UserEvent = "user-active"
	UserAccountAuthorizationRequested UserEvent = "user-account-authorization-requested"
	UserReadyToDeposit                UserEvent = "user-ready-to-deposit"
)

// PotEvent is a status transition pushed for a pot.
type PotEvent string

const (
	PotDraft                         PotEvent = "pot-draft"
	PotReadyToDeposit                PotEvent = "pot-ready-to-deposit"
	PotTermsAccepted                 PotEvent = "pot-terms-accepted"
	PotDepositInitiated              PotEvent = "pot-deposit-initiated"
	PotDepositAuthorizationRequested PotEvent = "pot-deposit-authorization-requested"
	PotDepositCompleted              PotEvent = "pot-deposit-completed"
	PotWithdrawalInitiated           PotEvent = "pot-withdrawal-initiated"
	PotWithdrawalCompleted           PotEvent = "pot-withdrawal-completed"
	PotActive                        PotEvent = "pot-active"
	PotAbandoned                     PotEvent = "pot-abandoned"
)

var userEvents = map[UserEvent]struct{}{
	UserCreated:                       {},
	UserReadyToVerify:                 {},
	UserVerificationInProgress:        {},
	UserIdvCheckCreated:               {},
	UserVerified:                      {},
	UserRejected:                      {},
	UserActive:                        {},
	UserAccountAuthorizationRequested: {},
	UserReadyToDeposit:                {},
}

var potEvents = map[PotEvent]struct{}{
	PotDraft:                         {},
	PotReadyToDeposit:                {},
	PotTermsAccepted:                 {},
	PotDepositInitiated:              {},
	PotDepositAuthorizationRequested: {},
	PotDepositCompleted:              {},
	PotWithdrawalInitiated:           {},
	PotWithdrawalCompleted:           {},
	PotActive:                        {},
	PotAbandoned:                     {},
}

// IsValid reports whether the event belongs to the user vocabulary.
func (e UserEvent) IsValid() bool {
	_, ok := userEvents[e]
	return ok
}

// IsValid reports whether the event belongs to the pot vocabulary.
func (e PotEvent) IsValid() bool {
	_, ok := potEvents[e]
	return ok
}

// Payload is the optional data carried alongside an event.
type Payload struct {
	IdvCheckURL       string               `json:"idvCheckUrl,omitempty"`
	IdvCheckExpiresAt *time.Time           `json:"idvCheckExpiresAt,omitempty"`
	AuthorisationURL  string               `json:"authorisationUrl,omitempty"`
	BankAccount       *coreapi.BankAccount `json:"bankAccount,omitempty"`
}

// Envelope is the wire shape of one push notification.
type Envelope struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Action     string     `json:"action"`
	Data       *Payload   `json:"data,omitempty"`
}

// UserNotification is an envelope resolved into the user vocabulary.
type UserNotification struct {
	UserID string
	Event  UserEvent
	Data   *Payload
}

// PotNotification is an envelope resolved into the pot vocabulary.
type PotNotification struct {
	PotID string
	Event PotEvent
	Data  *Payload
}

// Notification is the closed set of notifications the bridge delivers.
type Notification interface {
	notification()
}

func (UserNotification) notification() {}
func (PotNotification) notification()  {}

// Resolve maps an envelope into the typed vocabulary for its entity.
// Unknown entity types and unknown actions yield a nil notification;
// the bridge drops them rather than surfacing open-ended payloads.
func Resolve(env Envelope) Notification {
	switch env.EntityType {
	case EntityUser:
		event := UserEvent(env.Action)
		if !event.IsValid() {
			return nil
		}
		return UserNotification{UserID: env.EntityID, Event: event, Data: env.Data}
	case EntityPot:
		event := PotEvent(env.Action)
		if !event.IsValid() {
			return nil
		}
		return PotNotification{PotID: env.EntityID, Event: event, Data: env.Data}
	default:
		return nil
	}
}

// DecodeEnvelope parses a raw transport message.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
