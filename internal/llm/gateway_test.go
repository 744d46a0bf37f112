package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docuchat/internal/llm"
)

type MockChatModel struct {
	mock.Mock
}

func (m *MockChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockChatModel) CompleteStream(ctx context.Context, system, prompt string) (<-chan llm.StreamChunk, error) {
	args := m.Called(ctx, system, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan llm.StreamChunk), args.Error(1)
}

func streamOf(chunks ...llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestGateway_Order(t *testing.T) {
	openai := new(MockChatModel)
	anthropic := new(MockChatModel)
	gemini := new(MockChatModel)
	models := map[llm.Provider]llm.ChatModel{
		llm.ProviderOpenAI:    openai,
		llm.ProviderAnthropic: anthropic,
		llm.ProviderGemini:    gemini,
	}

	t.Run("primary moves to front", func(t *testing.T) {
		gw := llm.NewGateway(models, "gemini", "openai,anthropic,gemini")
		assert.Equal(t, []llm.Provider{llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic}, gw.Order())
		assert.Equal(t, llm.ProviderGemini, gw.ActiveProvider())
	})

	t.Run("unknown names dropped", func(t *testing.T) {
		gw := llm.NewGateway(models, "openai", "openai,llama,anthropic")
		assert.Equal(t, []llm.Provider{llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini}, gw.Order())
	})

	t.Run("unconfigured providers skipped", func(t *testing.T) {
		gw := llm.NewGateway(map[llm.Provider]llm.ChatModel{
			llm.ProviderAnthropic: anthropic,
		}, "openai", "openai,anthropic,gemini")
		assert.Equal(t, []llm.Provider{llm.ProviderAnthropic}, gw.Order())
	})

	t.Run("configured provider missing from list is appended", func(t *testing.T) {
		gw := llm.NewGateway(models, "openai", "openai,anthropic")
		assert.Equal(t, []llm.Provider{llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini}, gw.Order())
	})
}

func TestGateway_Complete_Fallback(t *testing.T) {
	openai := new(MockChatModel)
	anthropic := new(MockChatModel)
	models := map[llm.Provider]llm.ChatModel{
		llm.ProviderOpenAI:    openai,
		llm.ProviderAnthropic: anthropic,
	}
	gw := llm.NewGateway(models, "openai", "openai,anthropic")

	openai.On("Complete", mock.Anything, "sys", "q").Return("", errors.New("rate limited")).Once()
	anthropic.On("Complete", mock.Anything, "sys", "q").Return("the answer", nil).Once()

	answer, err := gw.Complete(context.Background(), "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	openai.AssertExpectations(t)
	anthropic.AssertExpectations(t)
}

func TestGateway_Complete_AllFail(t *testing.T) {
	openai := new(MockChatModel)
	models := map[llm.Provider]llm.ChatModel{llm.ProviderOpenAI: openai}
	gw := llm.NewGateway(models, "openai", "openai")

	openai.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("down"))

	_, err := gw.Complete(context.Background(), "sys", "q")
	var unavailable *llm.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorContains(t, unavailable.Cause, "down")
}

func TestGateway_Complete_NoProviders(t *testing.T) {
	gw := llm.NewGateway(nil, "openai", "openai,anthropic,gemini")
	assert.Equal(t, llm.Provider(""), gw.ActiveProvider())

	_, err := gw.Complete(context.Background(), "sys", "q")
	var unavailable *llm.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, llm.ErrNoProviders)
}

func TestGateway_CompleteStream_Fallback(t *testing.T) {
	openai := new(MockChatModel)
	anthropic := new(MockChatModel)
	models := map[llm.Provider]llm.ChatModel{
		llm.ProviderOpenAI:    openai,
		llm.ProviderAnthropic: anthropic,
	}
	gw := llm.NewGateway(models, "openai", "openai,anthropic")

	openai.On("CompleteStream", mock.Anything, "sys", "q").Return(nil, errors.New("down")).Once()
	anthropic.On("CompleteStream", mock.Anything, "sys", "q").
		Return(streamOf(llm.StreamChunk{Content: "hel"}, llm.StreamChunk{Content: "lo"}), nil).Once()

	ch, provider, err := gw.CompleteStream(context.Background(), "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderAnthropic, provider)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "hello", got)
}

func TestGateway_CompleteStream_NoProviders(t *testing.T) {
	gw := llm.NewGateway(nil, "", "")
	_, _, err := gw.CompleteStream(context.Background(), "sys", "q")
	assert.ErrorIs(t, err, llm.ErrNoProviders)
}

func TestGateway_IsAvailable(t *testing.T) {
	gw := llm.NewGateway(map[llm.Provider]llm.ChatModel{
		llm.ProviderOpenAI: new(MockChatModel),
	}, "openai", "openai")
	assert.True(t, gw.IsAvailable(llm.ProviderOpenAI))
	assert.False(t, gw.IsAvailable(llm.ProviderGemini))
}

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "gemini"} {
		p, err := llm.ParseProvider(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(p))
	}
	_, err := llm.ParseProvider("llama")
	assert.Error(t, err)
}
