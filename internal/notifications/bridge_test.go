package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pots-hq/pots/internal/config"
)

func newTestBridge() *Bridge {
	return NewBridge(config.RedisConfig{Address: "localhost:6379", Channel: "core:notifications"}, nil)
}

func TestResolve(t *testing.T) {
	t.Run("User Envelope", func(t *testing.T) {
		n := Resolve(Envelope{EntityType: EntityUser, EntityID: "u-1", Action: "user-verified"})
		user, ok := n.(UserNotification)
		require.True(t, ok)
		assert.Equal(t, "u-1", user.UserID)
		assert.Equal(t, UserVerified, user.Event)
	})

	t.Run("Pot Envelope With Payload", func(t *testing.T) {
		n := Resolve(Envelope{
			EntityType: EntityPot,
			EntityID:   "p-1",
			Action:     "pot-deposit-authorization-requested",
			Data:       &Payload{AuthorisationURL: "https://bank.example/authorise"},
		})
		pot, ok := n.(PotNotification)
		require.True(t, ok)
		assert.Equal(t, PotDepositAuthorizationRequested, pot.Event)
		require.NotNil(t, pot.Data)
		assert.Equal(t, "https://bank.example/authorise", pot.Data.AuthorisationURL)
	})

	t.Run("Unknown Action Is Dropped", func(t *testing.T) {
		assert.Nil(t, Resolve(Envelope{EntityType: EntityUser, Action: "user-exploded"}))
	})

	t.Run("Unknown Entity Type Is Dropped", func(t *testing.T) {
		assert.Nil(t, Resolve(Envelope{EntityType: "Card", Action: "pot-active"}))
	})
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"entityType":"Pot","entityId":"p1","action":"pot-active"}`))
	require.NoError(t, err)
	assert.Equal(t, EntityPot, env.EntityType)
	assert.Equal(t, "p1", env.EntityID)
	assert.Equal(t, "pot-active", env.Action)

	_, err = DecodeEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

func TestBridgeDispatch(t *testing.T) {
	t.Run("Fans Out To All Handlers", func(t *testing.T) {
		bridge := newTestBridge()
		var first, second []Notification
		bridge.Subscribe(func(n Notification) { first = append(first, n) })
		bridge.Subscribe(func(n Notification) { second = append(second, n) })

		bridge.Dispatch(Envelope{EntityType: EntityPot, EntityID: "p1", Action: "pot-active"})

		require.Len(t, first, 1)
		require.Len(t, second, 1)
	})

	t.Run("Unsubscribed Handler Stops Receiving", func(t *testing.T) {
		bridge := newTestBridge()
		var received int
		sub := bridge.Subscribe(func(Notification) { received++ })

		bridge.Dispatch(Envelope{EntityType: EntityUser, EntityID: "u1", Action: "user-verified"})
		sub.Unsubscribe()
		bridge.Dispatch(Envelope{EntityType: EntityUser, EntityID: "u1", Action: "user-active"})

		assert.Equal(t, 1, received)
	})

	t.Run("Unsubscribe Is Idempotent", func(t *testing.T) {
		bridge := newTestBridge()
		sub := bridge.Subscribe(func(Notification) {})
		sub.Unsubscribe()
		sub.Unsubscribe()
	})

	t.Run("Unknown Vocabulary Is Not Delivered", func(t *testing.T) {
		bridge := newTestBridge()
		var received int
		bridge.Subscribe(func(Notification) { received++ })

		bridge.Dispatch(Envelope{EntityType: EntityUser, EntityID: "u1", Action: "pot-active"})

		assert.Equal(t, 0, received)
	})
}

func TestBridgeDisconnect(t *testing.T) {
	t.Run("Clears All Handlers", func(t *testing.T) {
		bridge := newTestBridge()
		var received int
		bridge.Subscribe(func(Notification) { received++ })

		bridge.Disconnect()
		bridge.Dispatch(Envelope{EntityType: EntityPot, EntityID: "p1", Action: "pot-active"})

		assert.Equal(t, 0, received)
	})
}

func TestReconnectSchedule(t *testing.T) {
	// The backoff schedule is part of the transport contract: immediate,
	// 2s, 10s, then 30s for every later attempt.
	require.Equal(t, []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}, reconnectSchedule)
}
