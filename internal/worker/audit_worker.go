package worker

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/techdesk/internal/events"
)

// auditLevels lists the engine events recorded in the console's audit log and
// the level each is written at.
var auditLevels = map[events.EventType]zapcore.Level{
	events.EventAppointmentCreated:      zapcore.InfoLevel,
	events.EventAppointmentTransitioned: zapcore.InfoLevel,
	events.EventAppointmentNotesUpdated: zapcore.InfoLevel,
	events.EventSagaStarted:             zapcore.InfoLevel,
	events.EventSagaCompleted:           zapcore.InfoLevel,
	events.EventSubmissionFailed:        zapcore.WarnLevel,
	events.EventDegradedOverride:        zapcore.WarnLevel,
	events.EventSagaPartialFailure:      zapcore.ErrorLevel,
}

// StartAuditWorker subscribes a structured audit logger to the engine's events.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	for eventType, level := range auditLevels {
		level := level
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			if ce := audit.Check(level, string(event.Type)); ce != nil {
				ce.Write(
					zap.String("event_id", event.ID),
					zap.String("appointment_id", event.AppointmentID),
					zap.String("correlation_id", event.CorrelationID),
					zap.Time("at", event.Timestamp),
					zap.Any("payload", event.Payload),
				)
			}
			return nil
		})
	}
}
