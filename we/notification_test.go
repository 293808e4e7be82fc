package we

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Noted struct {
	Value string `json:"value"`
}

var source = AggregateId{Type: "test", Key: "notes"}

func TestDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers the encoded event", func(t *testing.T) {
		log := NewNotificationLog()
		Deposit(ctx, log, source, "revision", Noted{Value: "hello"})

		require.Equal(t, 1, log.Len())
		notification := log.Notifications()[0]
		assert.Equal(t, source, notification.Source)
		assert.Equal(t, Revision("revision"), notification.Revision)
		assert.Equal(t, EventTypeOf(Noted{}), notification.EventType)

		var noted Noted
		require.NoError(t, notification.Decode(&noted))
		assert.Equal(t, "hello", noted.Value)
	})

	t.Run("failures are not propagated", func(t *testing.T) {
		failing := NotifierFunc(func(context.Context, Notification) error { return errors.New("unavailable") })

		assert.NotPanics(t, func() { Deposit(ctx, failing, source, "revision", Noted{}) })
		assert.NotPanics(t, func() { Deposit(ctx, nil, source, "revision", Noted{}) })
	})

	t.Run("fans out to every notifier", func(t *testing.T) {
		first, second := NewNotificationLog(), NewNotificationLog()
		failure := errors.New("unavailable")
		failing := NotifierFunc(func(context.Context, Notification) error { return failure })

		notification, err := NewNotification(source, "revision", Noted{})
		require.NoError(t, err)

		err = Notifiers(first, failing, second).Notify(ctx, notification)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, first.Len())
		assert.Equal(t, 1, second.Len())
	})

	t.Run("logs are copies", func(t *testing.T) {
		log := NewNotificationLog()
		Deposit(ctx, log, source, "revision", Noted{})

		notifications := log.Notifications()
		notifications[0].Revision = "changed"

		assert.Equal(t, Revision("revision"), log.Notifications()[0].Revision)
	})
}

func TestOutcomes(t *testing.T) {
	assert.Equal(t, "ok", outcomeOf(nil))
	assert.Equal(t, "rejected", outcomeOf(NewModuleError("test", "rejected")))
	assert.Equal(t, "unauthorized", outcomeOf(BadOrigin))
	assert.Equal(t, "conflict", outcomeOf(RevisionConflict))
	assert.Equal(t, "error", outcomeOf(errors.New("boom")))

	var metrics *Metrics
	assert.NotPanics(t, func() { metrics.observe("test", nil) })
}
