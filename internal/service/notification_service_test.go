package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
)

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) BroadcastToUser(userID uuid.UUID, evt string, data any) error {
	args := m.Called(userID, evt, data)
	return args.Error(0)
}

func TestNotificationService_PublishSkipsOptedOutAndDuplicates(t *testing.T) {
	logger.Discard()
	store := memory.NewStore()
	pusher := new(mockPusher)
	svc := NewNotificationService(store.NotificationPreferences(), pusher)
	ctx := context.Background()

	client, freelancer := uuid.New(), uuid.New()
	require.NoError(t, svc.OptOut(ctx, freelancer, "escrow"))

	pusher.On("BroadcastToUser", client, string(event.EscrowFunded), mock.AnythingOfType("service.NotificationPayload")).Return(nil).Once()

	svc.Publish(ctx, event.Event{
		Type:       event.EscrowFunded,
		ProjectID:  uuid.New(),
		Recipients: []uuid.UUID{client, freelancer, client, uuid.Nil},
		Currency:   valueobject.CurrencyNative,
		Amount:     valueobject.NewAmount(10),
		OccurredAt: time.Now(),
	})

	pusher.AssertExpectations(t)
	pusher.AssertNotCalled(t, "BroadcastToUser", freelancer, mock.Anything, mock.Anything)
}

func TestNotificationService_OptInRestoresDelivery(t *testing.T) {
	logger.Discard()
	store := memory.NewStore()
	pusher := new(mockPusher)
	svc := NewNotificationService(store.NotificationPreferences(), pusher)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, svc.OptOut(ctx, user, "dispute"))
	require.NoError(t, svc.OptIn(ctx, user, "dispute"))

	pusher.On("BroadcastToUser", user, string(event.VoteCast), mock.Anything).Return(nil).Once()
	svc.Publish(ctx, event.Event{Type: event.VoteCast, Recipients: []uuid.UUID{user}, OccurredAt: time.Now()})
	pusher.AssertExpectations(t)
}

func TestNotificationService_UnknownCategory(t *testing.T) {
	store := memory.NewStore()
	svc := NewNotificationService(store.NotificationPreferences(), nil)

	err := svc.OptOut(context.Background(), uuid.New(), "marketing")
	assert.Error(t, err)
}
