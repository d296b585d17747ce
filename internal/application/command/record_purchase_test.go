package command_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/application/command"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/messaging"
	gw "github.com/bikemart-ng/loyalty-hub/internal/infrastructure/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/memory"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/postgres"
)

// eventRecorder captures published events synchronously.
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *eventRecorder) record(event shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) byType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func syncBus(t *testing.T) *messaging.InMemoryEventBus {
	t.Helper()
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return messaging.NewInMemoryEventBus(cfg)
}

func TestRecordPurchaseCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     command.RecordPurchaseCommand
		wantErr error
	}{
		{
			name: "valid",
			cmd:  command.RecordPurchaseCommand{UserID: 1, AmountMinor: 500},
		},
		{
			name:    "zero user",
			cmd:     command.RecordPurchaseCommand{UserID: 0, AmountMinor: 500},
			wantErr: shared.ErrInvalidUserID,
		},
		{
			name:    "negative user",
			cmd:     command.RecordPurchaseCommand{UserID: -4, AmountMinor: 500},
			wantErr: shared.ErrInvalidUserID,
		},
		{
			name:    "zero amount",
			cmd:     command.RecordPurchaseCommand{UserID: 1, AmountMinor: 0},
			wantErr: shared.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			cmd:     command.RecordPurchaseCommand{UserID: 1, AmountMinor: -100},
			wantErr: shared.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordPurchase_GeneratesID(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewRecordPurchaseHandler(store, nil, nil, nil)

	result, err := handler.Handle(context.Background(), command.RecordPurchaseCommand{
		UserID:      1,
		AmountMinor: 150_000,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(result.PurchaseID)
	assert.NoError(t, err, "generated purchase ID should be a UUID")
	assert.Nil(t, result.Cascade)
	assert.False(t, result.RecordedAt.IsZero())
}

func TestRecordPurchase_DuplicateID(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewRecordPurchaseHandler(store, nil, nil, nil)
	ctx := context.Background()

	cmd := command.RecordPurchaseCommand{
		PurchaseID:  "order-42",
		UserID:      1,
		AmountMinor: 150_000,
	}

	_, err := handler.Handle(ctx, cmd)
	require.NoError(t, err)

	_, err = handler.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrPurchaseExists)
}

func TestRecordPurchase_PublishesEvent(t *testing.T) {
	store := memory.NewStore()
	bus := syncBus(t)
	defer bus.Close()

	recorder := &eventRecorder{}
	require.NoError(t, bus.Subscribe(shared.EventPurchaseRecorded, recorder.record))

	handler := command.NewRecordPurchaseHandler(store, nil, bus, nil)

	_, err := handler.Handle(context.Background(), command.RecordPurchaseCommand{
		PurchaseID:  "order-1",
		UserID:      7,
		AmountMinor: 250_000,
	})
	require.NoError(t, err)

	published := recorder.byType(shared.EventPurchaseRecorded)
	require.Len(t, published, 1)

	event, ok := published[0].(shared.PurchaseRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, "order-1", event.PurchaseID)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, int64(250_000), event.AmountMinor)
}

func TestRecordPurchase_RunsCascade(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	disburser := cascade.NewDisburser(store, gw.NewMockGateway(nil), nil)
	orchestrator := cascade.NewOrchestrator(store, disburser, nil, nil, cascade.DefaultOrchestratorConfig())
	handler := command.NewRecordPurchaseHandler(store, orchestrator, nil, nil)

	result, err := handler.Handle(ctx, command.RecordPurchaseCommand{
		UserID:      3,
		AmountMinor: shared.FromMajor(500).Minor(),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Cascade)
	require.Len(t, result.Cascade.UnlockedAchievements, 1)
	assert.Equal(t, "First Purchase", result.Cascade.UnlockedAchievements[0].Name)
	assert.Equal(t, shared.Points(10), result.Cascade.TotalPoints)
}

func TestRecordPurchase_CurrencyDefaultsAndValidates(t *testing.T) {
	store := memory.NewStore()
	handler := command.NewRecordPurchaseHandler(store, nil, nil, nil)
	ctx := context.Background()

	_, err := handler.Handle(ctx, command.RecordPurchaseCommand{
		UserID:      1,
		AmountMinor: 100,
		Currency:    "usd",
	})
	assert.NoError(t, err)

	_, err = handler.Handle(ctx, command.RecordPurchaseCommand{
		UserID:      1,
		AmountMinor: 100,
		Currency:    "not-a-currency",
	})
	assert.Error(t, err)
}
