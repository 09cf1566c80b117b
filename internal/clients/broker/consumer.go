package broker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/lock"
	"github.com/shiftfill/outreach/internal/logger"
	"github.com/shiftfill/outreach/internal/records"
	log "github.com/sirupsen/logrus"
)

type Handler interface {
	HandleOpening(ctx context.Context, request entities.OpeningRequest) (string, error)
	HandleInbound(ctx context.Context, msg entities.InboundMessage) error
	RejectOpening(ctx context.Context, openingID string, cause error)
}

// Consume feeds the openings and inbound queues to handler until ctx is done or a delivery channel closes.
// Malformed messages are dropped; a dropped opening that still names its id is reported to the handler
// so it can be escalated. Openings blocked by a processing lock go back to the queue after the
// configured delay; every other handler error is logged and acknowledged.
func (b *Broker) Consume(ctx context.Context, handler Handler) error {
	openings, err := b.channel.Consume(b.cfg.OpeningsQueue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to consume openings")
	}
	inbound, err := b.channel.Consume(b.cfg.InboundQueue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to consume inbound replies")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-openings:
			if !ok {
				return errors.New("openings delivery channel closed")
			}
			b.handleOpening(ctx, handler, d)
		case d, ok := <-inbound:
			if !ok {
				return errors.New("inbound delivery channel closed")
			}
			b.handleInbound(ctx, handler, d)
		}
	}
}

func (b *Broker) handleOpening(ctx context.Context, handler Handler, d amqp.Delivery) {
	request, err := records.DecodeOpeningRequest(d.Body)
	if err != nil {
		log.Warnf("dropping malformed opening request: %v", err)
		if openingID := records.PeekOpeningID(d.Body); openingID != "" {
			handler.RejectOpening(ctx, openingID, err)
		}
		reject(d, false)
		return
	}

	campaignID, err := handler.HandleOpening(ctx, request)
	switch {
	case errors.Is(err, lock.ErrLockConflict):
		log.Infof("opening %s is locked, requeue in %v: %v", request.Opening.ID, b.cfg.RequeueDelay, err)
		time.AfterFunc(b.cfg.RequeueDelay, func() { reject(d, true) })
		return
	case err != nil:
		log.Warnf("opening %s was not started: %v", request.Opening.ID, err)
	default:
		log.Debugf("opening %s handed to campaign %s", request.Opening.ID, campaignID)
	}
	ack(d)
}

func (b *Broker) handleInbound(ctx context.Context, handler Handler, d amqp.Delivery) {
	msg, err := records.DecodeInbound(d.Body)
	if err != nil {
		log.Warnf("dropping malformed inbound reply: %v", err)
		reject(d, false)
		return
	}

	if err := handler.HandleInbound(ctx, msg); err != nil {
		log.Infof("inbound reply from %s was not routed: %v", msg.CandidateID, err)
	}
	ack(d)
}

func ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeBroker).Errorf("failed to ack delivery: %v", err)
	}
}

func reject(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeBroker).Errorf("failed to nack delivery: %v", err)
	}
}
