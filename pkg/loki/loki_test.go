package loki

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func Test_ConfigValidation(t *testing.T) {
	cfg := Config{}
	_, err := New(context.Background(), cfg, &MockLogger{})
	assert.Error(t, err)

	cfg.Url = "not a url"
	_, err = New(context.Background(), cfg, &MockLogger{})
	assert.Error(t, err)

	cfg.Url = "http://loki:3100/loki/api/v1/push"
	cfg.Username = "user"
	_, err = New(context.Background(), cfg, &MockLogger{})
	assert.Error(t, err)

	cfg.Username = ""
	pusher, err := New(context.Background(), cfg, &MockLogger{})
	require.NoError(t, err)
	defer pusher.Stop()
	assert.Equal(t, cfg.Url, pusher.config.Url)
	assert.Equal(t, 1000, pusher.config.BatchMaxSize)
	assert.Equal(t, 5*time.Second, pusher.config.BatchMaxWait)
	assert.Equal(t, 4096, pusher.config.BufferSize)
	assert.Equal(t, map[string]string{}, pusher.config.Labels)
}

func Test_Pusher_FlushesBatchOnStop(t *testing.T) {
	var mu sync.Mutex
	var received []lokiPushRequest
	var auth []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var req lokiPushRequest
		require.NoError(t, json.NewDecoder(gz).Decode(&req))

		user, pass, _ := r.BasicAuth()
		mu.Lock()
		received = append(received, req)
		auth = append(auth, user+":"+pass)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	logger := &MockLogger{}
	pusher, err := New(context.Background(), Config{
		Url:          server.URL,
		BatchMaxWait: time.Hour,
		Labels:       map[string]string{"app": "shift-outreach"},
		Username:     "user",
		Password:     "secret",
	}, logger)
	require.NoError(t, err)

	require.NoError(t, pusher.Push(LogEntry{Level: "error", Message: "gateway down",
		Fields: map[string]any{"error_type": "gateway"}}))
	require.NoError(t, pusher.Push(LogEntry{Level: "info", Message: "opening filled"}))
	pusher.Stop()
	pusher.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	stream := received[0].Streams[0]
	assert.Equal(t, "shift-outreach", stream.Stream["app"])
	require.Len(t, stream.Values, 2)

	var first LogEntry
	require.NoError(t, json.Unmarshal([]byte(stream.Values[0][1]), &first))
	assert.Equal(t, "gateway down", first.Message)
	assert.Equal(t, "gateway", first.Fields["error_type"])
	assert.Equal(t, []string{"user:secret"}, auth)
	assert.Empty(t, logger.errors)
}

func Test_Pusher_DropsWhenBufferIsFull(t *testing.T) {
	pusher := &Pusher{entry: make(chan LogEntry, 1)}

	assert.NoError(t, pusher.Push(LogEntry{Message: "first"}))
	assert.ErrorIs(t, pusher.Push(LogEntry{Message: "second"}), ErrBufferFull)
}
