package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	"github.com/spec-kit/techdesk/internal/service"
)

func TestAuditWorkerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartAuditWorker(dispatcher, zap.New(core))

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventDegradedOverride, "", events.DegradedOverridePayload{TechnicianID: "tech-a"})))
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventSagaPartialFailure, "appt-1", events.SagaPayload{OriginalID: "appt-1"})))
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventAppointmentCreated, "appt-2", nil)))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "degraded_override", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "appt-1", entries[1].ContextMap()["appointment_id"])
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, "audit", entries[2].LoggerName)
}

func TestNotificationWorkerHandlesAppointmentEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartNotificationWorker(service.NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "noreply@example.com",
		WebhookURL: "http://hooks.local/techdesk",
	}))

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventAppointmentTransitioned, "appt-1", events.AppointmentTransitionedPayload{
		Action:    domain.ActionCancel,
		OldStatus: domain.AppointmentStatusPending,
		NewStatus: domain.AppointmentStatusCancelled,
		Reason:    "customer request",
	})))

	assert.Equal(t, 1, logs.FilterMessage("AppointmentTransitioned").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())

	StartNotificationWorker(nil)
}
