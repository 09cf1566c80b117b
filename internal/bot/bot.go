// Package bot pushes escalations and clarification notes to the coordinators' Telegram chat and
// answers a few coordinator commands from that chat.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/lock"
	log "github.com/sirupsen/logrus"
)

type Dependencies struct {
	Locks     lockStatusReader
	Campaigns campaignCanceller
	History   campaignHistory
}

type lockStatusReader interface {
	Status(ctx context.Context, openingID string) (lock.Status, error)
}

type campaignCanceller interface {
	Cancel(ctx context.Context, openingID, reason string) error
}

type campaignHistory interface {
	GetByOpening(ctx context.Context, openingID string) ([]entities.CampaignRecord, error)
}

type Bot struct {
	tg     *botApi.BotAPI
	api    apiInterface
	chatID int64
	deps   Dependencies
}

func NewBot(token string, chatID int64, bus EventBus.Bus, deps Dependencies) (*Bot, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	err = botApi.SetLogger(log.StandardLogger())
	if err != nil {
		return nil, err
	}

	b, err := newBot(api, chatID, bus, deps)
	if err != nil {
		return nil, err
	}
	b.tg = api
	return b, nil
}

func newBot(api apiInterface, chatID int64, bus EventBus.Bus, deps Dependencies) (*Bot, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}

	if deps.Locks == nil {
		return nil, errors.New("lock status reader is nil")
	}

	if deps.Campaigns == nil {
		return nil, errors.New("campaign canceller is nil")
	}

	b := &Bot{api: api, chatID: chatID, deps: deps}

	if err := bus.SubscribeAsync(events.OpeningEscalatedTopic, b.onOpeningEscalated, false); err != nil {
		return nil, err
	}
	if err := bus.SubscribeAsync(events.ClarificationNeededTopic, b.onClarificationNeeded, false); err != nil {
		return nil, err
	}
	return b, nil
}

// Run reads coordinator commands until ctx is done.
func (b *Bot) Run(ctx context.Context) {

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.tg.GetUpdatesChan(updateConfig)
	go func() {
		<-ctx.Done()
		b.tg.StopReceivingUpdates()
	}()

	for update := range updates {

		if update.Message == nil || update.Message.Chat.ID != b.chatID {
			continue
		}

		go b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *botApi.Message) {
	if !message.IsCommand() {
		return
	}

	response := botApi.NewMessage(b.chatID, b.handleCommand(ctx, message.Command(), message.CommandArguments()))
	response.ReplyToMessageID = message.MessageID
	_, _ = sendWithLogError(b.api, response)
}

func (b *Bot) handleCommand(ctx context.Context, command string, args string) string {

	openingID, rest := commandArgs(args)
	if command != helpCommandName && openingID == "" {
		return "Which opening? " + helpText
	}

	switch command {
	case statusCommandName:
		status, err := b.deps.Locks.Status(ctx, openingID)
		if err != nil {
			log.Errorf("couldn't read lock for opening %s: %v", openingID, err)
			return "Internal error!"
		}
		return lockText(status)

	case cancelCommandName:
		if rest == "" {
			rest = "cancelled from coordinator chat"
		}
		if err := b.deps.Campaigns.Cancel(ctx, openingID, rest); err != nil {
			return fmt.Sprintf("Nothing to cancel: %v", err)
		}
		return fmt.Sprintf("Outreach for opening %s is being cancelled.", openingID)

	case historyCommandName:
		if b.deps.History == nil {
			return "History is not available."
		}
		records, err := b.deps.History.GetByOpening(ctx, openingID)
		if err != nil {
			log.Errorf("couldn't read campaigns for opening %s: %v", openingID, err)
			return "Internal error!"
		}
		return historyText(openingID, records)

	case helpCommandName:
		return helpText

	default:
		return "Unknown command! " + helpText
	}
}

func (b *Bot) onOpeningEscalated(event events.OpeningEscalated) {
	_, _ = sendWithLogError(b.api, botApi.NewMessage(b.chatID, escalationText(event)))
}

func (b *Bot) onClarificationNeeded(event events.ClarificationNeeded) {
	_, _ = sendWithLogError(b.api, botApi.NewMessage(b.chatID, clarificationText(event)))
}
