package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/shiftfill/outreach/internal/classifier"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockApi struct {
	mu           sync.Mutex
	SentMessages []botApi.MessageConfig
	err          error
}

func (m *mockApi) Send(chattable botApi.Chattable) (botApi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, chattable.(botApi.MessageConfig))
	return botApi.Message{}, m.err
}

func (m *mockApi) sent() []botApi.MessageConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]botApi.MessageConfig(nil), m.SentMessages...)
}

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) Status(ctx context.Context, openingID string) (lock.Status, error) {
	args := m.Called(ctx, openingID)
	return args.Get(0).(lock.Status), args.Error(1)
}

type mockCampaigns struct {
	mock.Mock
}

func (m *mockCampaigns) Cancel(ctx context.Context, openingID, reason string) error {
	return m.Called(ctx, openingID, reason).Error(0)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) GetByOpening(ctx context.Context, openingID string) ([]entities.CampaignRecord, error) {
	args := m.Called(ctx, openingID)
	return args.Get(0).([]entities.CampaignRecord), args.Error(1)
}

const coordinatorsChat = int64(-100500)

func newTestBot(t *testing.T, deps Dependencies) (*Bot, *mockApi, EventBus.Bus) {
	api := &mockApi{}
	bus := EventBus.New()
	if deps.Locks == nil {
		deps.Locks = &mockLocks{}
	}
	if deps.Campaigns == nil {
		deps.Campaigns = &mockCampaigns{}
	}
	b, err := newBot(api, coordinatorsChat, bus, deps)
	require.NoError(t, err)
	return b, api, bus
}

func Test_Bot_WhenDependencyMissing_ShouldFail(t *testing.T) {
	_, err := newBot(&mockApi{}, coordinatorsChat, EventBus.New(), Dependencies{Campaigns: &mockCampaigns{}})
	assert.Error(t, err)

	_, err = newBot(&mockApi{}, coordinatorsChat, nil, Dependencies{Locks: &mockLocks{}, Campaigns: &mockCampaigns{}})
	assert.Error(t, err)
}

func Test_Bot_WhenOpeningEscalated_ShouldNotifyCoordinators(t *testing.T) {
	_, api, bus := newTestBot(t, Dependencies{})

	bus.Publish(events.OpeningEscalatedTopic, events.OpeningEscalated{
		OpeningID: "op-1",
		Status:    "ESCALATED",
		Reason:    "tiers_exhausted",
		Attempts: []events.AttemptSummary{
			{CandidateID: "c1", Tier: "A", Channel: "sms", Status: "declined"},
			{CandidateID: "c2", Tier: "B", Channel: "sms", Status: "expired", DeliveryFailed: true, FailureReason: "bad number"},
		},
	})
	bus.WaitAsync()

	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, coordinatorsChat, sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "Opening op-1 needs a coordinator: ESCALATED (tiers_exhausted)")
	assert.Contains(t, sent[0].Text, "- c1 tier A via sms: declined")
	assert.Contains(t, sent[0].Text, "delivery failed: bad number")
}

func Test_Bot_WhenClarificationNeeded_ShouldForwardReply(t *testing.T) {
	_, api, bus := newTestBot(t, Dependencies{})

	window := &classifier.Window{Start: &classifier.Clock{Hour: 14}}
	bus.Publish(events.ClarificationNeededTopic, events.ClarificationNeeded{
		OpeningID:   "op-1",
		CandidateID: "c3",
		Intent:      classifier.PartialAvailability,
		Text:        "can't do 9 but I could come after 2pm",
		Window:      window,
		ReceivedAt:  time.Now(),
	})
	bus.WaitAsync()

	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Reply from c3 about op-1 needs a look (PARTIAL_AVAILABILITY)")
	assert.Contains(t, sent[0].Text, "Offered window: "+window.String())
}

func Test_Bot_WhenSendFails_ShouldKeepRunning(t *testing.T) {
	_, api, bus := newTestBot(t, Dependencies{})
	api.err = errors.New("telegram is down")

	bus.Publish(events.ClarificationNeededTopic, events.ClarificationNeeded{CandidateID: "c3", Text: "who is this?"})
	bus.Publish(events.ClarificationNeededTopic, events.ClarificationNeeded{CandidateID: "c4", Text: "?"})
	bus.WaitAsync()

	sent := api.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Text+sent[1].Text, "unknown opening")
}

func Test_Bot_StatusCommand(t *testing.T) {
	locks := &mockLocks{}
	expires := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	locks.On("Status", mock.Anything, "op-1").
		Return(lock.Status{OpeningID: "op-1", Locked: true, HolderID: "engine-1", Reason: "automated outreach", ExpiresAt: expires}, nil)
	locks.On("Status", mock.Anything, "op-2").Return(lock.Status{OpeningID: "op-2"}, nil)

	b, _, _ := newTestBot(t, Dependencies{Locks: locks})

	assert.Equal(t, "Opening op-1 is locked by engine-1 (automated outreach) until Mar 2 09:00 UTC.",
		b.handleCommand(context.Background(), statusCommandName, "op-1"))
	assert.Equal(t, "Opening op-2 is not locked.", b.handleCommand(context.Background(), statusCommandName, " op-2 "))
	assert.Contains(t, b.handleCommand(context.Background(), statusCommandName, ""), "Which opening?")
}

func Test_Bot_CancelCommand(t *testing.T) {
	campaigns := &mockCampaigns{}
	campaigns.On("Cancel", mock.Anything, "op-1", "filled by phone").Return(nil).Once()
	campaigns.On("Cancel", mock.Anything, "op-2", "cancelled from coordinator chat").
		Return(fmt.Errorf("opening op-2: %w", errors.New("no running campaign"))).Once()

	b, _, _ := newTestBot(t, Dependencies{Campaigns: campaigns})

	assert.Equal(t, "Outreach for opening op-1 is being cancelled.",
		b.handleCommand(context.Background(), cancelCommandName, "op-1 filled by phone"))
	assert.Contains(t, b.handleCommand(context.Background(), cancelCommandName, "op-2"), "Nothing to cancel")
	campaigns.AssertExpectations(t)
}

func Test_Bot_HistoryCommand(t *testing.T) {
	created := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	finished := created.Add(42 * time.Minute)

	history := &mockHistory{}
	history.On("GetByOpening", mock.Anything, "op-1").Return([]entities.CampaignRecord{
		{ID: "camp-1", Status: "EXPIRED", OutcomeReason: "lifetime_exceeded", CreatedAt: created, FinishedAt: &finished},
		{ID: "camp-2", Status: "FILLED", WinnerCandidateID: "c2", CreatedAt: finished, FinishedAt: &finished},
	}, nil)

	b, _, _ := newTestBot(t, Dependencies{History: history})
	text := b.handleCommand(context.Background(), historyCommandName, "op-1")

	assert.Contains(t, text, "camp-1: EXPIRED (lifetime_exceeded) after 42m0s")
	assert.Contains(t, text, "camp-2: FILLED by c2")

	b.deps.History = nil
	assert.Equal(t, "History is not available.", b.handleCommand(context.Background(), historyCommandName, "op-1"))
}
