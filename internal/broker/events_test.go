package broker

import (
	"context"
	"encoding/json"
	"testing"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys   []string
	events []interface{}
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return nil
}

func TestEventPublisherKeys(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)
	orderID := uuid.New()

	require.NoError(t, ep.PublishOrderPlaced(context.Background(), &models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   orderID,
	}))
	require.NoError(t, ep.PublishEmailRequested(context.Background(), &models.EmailRequestedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeEmailRequested),
		To:        "a@example.com",
	}))

	assert.Equal(t, []string{"order-" + orderID.String(), "email-a@example.com"}, rec.keys)
}

func TestHandleMessageRoutesEmail(t *testing.T) {
	eh := NewEventHandler()
	var got *models.EmailRequestedEvent
	eh.OnEmailRequested(func(ctx context.Context, e *models.EmailRequestedEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(models.EmailRequestedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeEmailRequested),
		To:        "a@example.com",
		Template:  models.EmailTemplateVerification,
		SecretRef: "ref-1",
	})
	require.NoError(t, err)

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.To)
	assert.Equal(t, models.EmailTemplateVerification, got.Template)
	assert.Equal(t, "ref-1", got.SecretRef)
}

func TestHandleMessageIgnoresUnknownType(t *testing.T) {
	eh := NewEventHandler()
	eh.OnEmailRequested(func(ctx context.Context, e *models.EmailRequestedEvent) error {
		t.Fatal("unexpected dispatch")
		return nil
	})

	payload, _ := json.Marshal(models.NewBaseEvent("SOMETHING_ELSE"))
	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}
