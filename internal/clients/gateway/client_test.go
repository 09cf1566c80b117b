package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	return args.Get(0).(*http.Response), args.Error(1)
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}
}

var offer = entities.OutboundMessage{
	Kind:        entities.MessageOffer,
	Channel:     entities.ChannelSMS,
	CampaignID:  "camp-1",
	OpeningID:   "op-1",
	CandidateID: "c1",
	To:          "+15551230001",
	Body:        "Open shift. Reply YES to accept.",
}

func Test_GatewayClient_Send_SMS_ShouldBeSuccessful(t *testing.T) {

	assert := assert.New(t)

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		var payload messageRequest
		body, err := req.GetBody()
		if err != nil || json.NewDecoder(body).Decode(&payload) != nil {
			return false
		}
		return req.Method == http.MethodPost &&
			req.URL.String() == "https://gateway.example/v1/messages" &&
			req.Header.Get("Authorization") == "Bearer key" &&
			req.Header.Get("Idempotency-Key") == "camp-1:c1:sms:offer" &&
			payload.To == offer.To && payload.Body == offer.Body
	})).Return(response(http.StatusAccepted, `{"id":"msg-1"}`), nil)

	client := NewClient("https://gateway.example/", "key")
	client.SetHTTPClient(mockClient)
	client.SetRateLimit(100)

	assert.NoError(client.Send(context.Background(), offer))
	mockClient.AssertExpectations(t)
}

func Test_GatewayClient_Send_VoiceUsesCallsEndpoint(t *testing.T) {

	call := offer
	call.Channel = entities.ChannelVoice
	call.Params = map[string]string{"prompt": "Press 1 to accept"}

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.Path == "/v1/calls"
	})).Return(response(http.StatusOK, ``), nil)

	client := NewClient("https://gateway.example", "key")
	client.SetHTTPClient(mockClient)

	assert.NoError(t, client.Send(context.Background(), call))
	mockClient.AssertExpectations(t)
}

func Test_GatewayClient_Send_ReturnsStatusError(t *testing.T) {

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(response(http.StatusServiceUnavailable, "try later"), nil)

	client := NewClient("https://gateway.example", "key")
	client.SetHTTPClient(mockClient)

	err := client.Send(context.Background(), offer)
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "try later", statusErr.Body)
}

func Test_GatewayClient_Send_RequiresPhone(t *testing.T) {
	mockClient := &mockHTTPClient{}
	client := NewClient("https://gateway.example", "key")
	client.SetHTTPClient(mockClient)

	noPhone := offer
	noPhone.To = ""
	assert.Error(t, client.Send(context.Background(), noPhone))
	mockClient.AssertNotCalled(t, "Do", mock.Anything)
}
