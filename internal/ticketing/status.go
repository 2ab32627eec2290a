// Package ticketing keeps local support tickets in sync with the OpenClaw
// remediation agent.
package ticketing

import (
	"fmt"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// Callback event types sent by the agent.
const (
	EventTriaged          = "ticket.triaged"
	EventAnalysisReady    = "ticket.analysis_ready"
	EventSolutionProposed = "ticket.solution_proposed"
	EventResolved         = "ticket.resolved"
	EventNeedsHuman       = "ticket.needs_human"
)

var callbackStatus = map[string]models.TicketStatus{
	EventTriaged:          models.TicketTriaged,
	EventAnalysisReady:    models.TicketInProgress,
	EventSolutionProposed: models.TicketFixed,
	EventResolved:         models.TicketClosed,
	EventNeedsHuman:       models.TicketNeedsHuman,
}

// MapCallbackEventToStatus is the only way a callback may change a ticket's status.
func MapCallbackEventToStatus(eventType string) (models.TicketStatus, error) {
	status, ok := callbackStatus[eventType]
	if !ok {
		return "", apperr.UnsupportedEvent(eventType)
	}
	return status, nil
}

// IsCallbackEvent reports whether eventType has a status mapping.
func IsCallbackEvent(eventType string) bool {
	_, ok := callbackStatus[eventType]
	return ok
}

// localTransitions lists the status changes staff may make by hand.
var localTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketReceived:   {models.TicketTriaged, models.TicketNeedsHuman, models.TicketClosed},
	models.TicketTriaged:    {models.TicketInProgress, models.TicketNeedsHuman, models.TicketClosed},
	models.TicketInProgress: {models.TicketFixed, models.TicketNeedsHuman, models.TicketClosed},
	models.TicketFixed:      {models.TicketClosed, models.TicketNeedsHuman},
	models.TicketNeedsHuman: {models.TicketInProgress, models.TicketClosed},
}

// CanTransition reports whether a local status change from -> to is allowed.
func CanTransition(from, to models.TicketStatus) bool {
	for _, next := range localTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidArgument error when from -> to is not allowed.
func ValidateTransition(from, to models.TicketStatus) error {
	if !CanTransition(from, to) {
		return apperr.InvalidArgument(fmt.Sprintf("cannot move ticket from %s to %s", from, to))
	}
	return nil
}
