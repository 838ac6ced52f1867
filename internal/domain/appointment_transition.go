package domain

import "strings"

// AppointmentAction names a caller-invoked status change.
type AppointmentAction string

const (
	ActionConfirm  AppointmentAction = "confirm"
	ActionStart    AppointmentAction = "start"
	ActionComplete AppointmentAction = "complete"
	ActionCancel   AppointmentAction = "cancel"
	ActionNoShow   AppointmentAction = "no_show"
)

// ParseAppointmentAction accepts the action names used on the command line.
func ParseAppointmentAction(raw string) (AppointmentAction, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	action := AppointmentAction(normalized)
	for _, known := range allActions {
		if known == action {
			return action, true
		}
	}
	return "", false
}

var allActions = []AppointmentAction{ActionConfirm, ActionStart, ActionComplete, ActionCancel, ActionNoShow}

type transitionKey struct {
	From   AppointmentStatus
	Action AppointmentAction
}

// appointmentTransitions is the complete transition graph. Anything absent is rejected.
var appointmentTransitions = map[transitionKey]AppointmentStatus{
	{AppointmentStatusPending, ActionConfirm}:     AppointmentStatusConfirmed,
	{AppointmentStatusPending, ActionCancel}:      AppointmentStatusCancelled,
	{AppointmentStatusConfirmed, ActionStart}:     AppointmentStatusInProgress,
	{AppointmentStatusConfirmed, ActionCancel}:    AppointmentStatusCancelled,
	{AppointmentStatusConfirmed, ActionNoShow}:    AppointmentStatusNoShow,
	{AppointmentStatusInProgress, ActionComplete}: AppointmentStatusCompleted,
}

// NextStatus returns the status reached by applying action to from.
func NextStatus(from AppointmentStatus, action AppointmentAction) (AppointmentStatus, bool) {
	to, ok := appointmentTransitions[transitionKey{From: from, Action: action}]
	return to, ok
}

// AllowedActions lists the actions the table permits from a status, in a stable order.
func AllowedActions(from AppointmentStatus) []AppointmentAction {
	var out []AppointmentAction
	for _, action := range allActions {
		if _, ok := NextStatus(from, action); ok {
			out = append(out, action)
		}
	}
	return out
}
