package broker

import (
	"context"

	"github.com/asaskevich/EventBus"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/logger"
	log "github.com/sirupsen/logrus"
)

const (
	TypeOpeningFilled       = "opening.filled"
	TypeOpeningEscalated    = "opening.escalated"
	TypeClarificationNeeded = "reply.clarification_needed"
)

// Subscribe forwards assignments and escalations from the bus to their queues.
// Handlers run asynchronously so a slow broker never stalls a campaign.
func (b *Broker) Subscribe(bus EventBus.Bus) error {
	if err := bus.SubscribeAsync(events.OpeningFilledTopic, b.onOpeningFilled, false); err != nil {
		return err
	}
	if err := bus.SubscribeAsync(events.OpeningEscalatedTopic, b.onOpeningEscalated, false); err != nil {
		return err
	}
	return bus.SubscribeAsync(events.ClarificationNeededTopic, b.onClarificationNeeded, false)
}

func (b *Broker) onOpeningFilled(e events.OpeningFilled) {
	b.forward(b.cfg.AssignmentsQueue, TypeOpeningFilled, e.OpeningID, e)
}

func (b *Broker) onOpeningEscalated(e events.OpeningEscalated) {
	b.forward(b.cfg.EscalationsQueue, TypeOpeningEscalated, e.OpeningID, e)
}

func (b *Broker) onClarificationNeeded(e events.ClarificationNeeded) {
	b.forward(b.cfg.EscalationsQueue, TypeClarificationNeeded, e.OpeningID, e)
}

func (b *Broker) forward(queue, messageType, openingID string, payload any) {
	if err := b.publish(context.Background(), queue, messageType, payload); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeBroker).
			Errorf("failed to publish %s for opening %s: %v", messageType, openingID, err)
		return
	}
	log.Debugf("%s for opening %s published to %s", messageType, openingID, queue)
}
