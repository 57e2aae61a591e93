package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/pkg/errors"
)

// flakyProvider fails a fixed number of calls before succeeding
type flakyProvider struct {
	failures  int
	calls     int
	lastModel string
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.calls++
	p.lastModel = req.Model
	if p.calls <= p.failures {
		return nil, errors.New("transient upstream failure")
	}
	return &ChatResponse{Content: "ok", FinishReason: FinishReasonStop}, nil
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	provider := &flakyProvider{failures: 2}
	client := NewClient(provider, ClientConfig{
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})

	resp, err := client.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, provider.calls)
}

func TestClient_ExhaustedRetriesReportUnavailable(t *testing.T) {
	provider := &flakyProvider{failures: 10}
	client := NewClient(provider, ClientConfig{
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	})

	_, err := client.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEngineUnavailable))
	assert.Equal(t, 2, provider.calls)
}

func TestClient_AppliesConfiguredModel(t *testing.T) {
	provider := &flakyProvider{}
	client := NewClient(provider, ClientConfig{Model: "tutor-large"})

	_, err := client.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "tutor-large", provider.lastModel)

	// An explicit request model wins
	_, err = client.Chat(context.Background(), ChatRequest{Model: "tutor-small"})
	require.NoError(t, err)
	assert.Equal(t, "tutor-small", provider.lastModel)
}

func TestClient_CancelledContextStopsRetrying(t *testing.T) {
	provider := &flakyProvider{failures: 10}
	client := NewClient(provider, ClientConfig{
		MaxRetries:   5,
		RetryBackoff: time.Minute, // never reached: ctx cancels first
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, ChatRequest{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrEngineUnavailable))
	assert.LessOrEqual(t, provider.calls, 1)
}
