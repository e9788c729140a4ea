package aisvc

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/group"
)

type completerMock struct {
	mock.Mock
}

func (m *completerMock) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestNewAssistant(t *testing.T) {
	conf := core.NewTestConfig()
	assert.Nil(t, NewAssistant(conf))

	conf.OpenAI.APIKey = "sk-test"
	assert.NotNil(t, NewAssistant(conf))
}

func Test_parseQuestions(t *testing.T) {
	got := parseQuestions("1. What does love mean here?\n\n- Who is the world?\n* Why a Son?\n2) What changes?\nWhat now?\nOne too many?")
	assert.Equal(t, []string{
		"What does love mean here?",
		"Who is the world?",
		"Why a Son?",
		"What changes?",
		"What now?",
	}, got)
}

func TestAssistant_DiscussionQuestions(t *testing.T) {
	ctx := context.Background()
	m := new(completerMock)
	a := NewAssistantWithClient(m, "")

	m.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == openai.GPT4oMini && len(req.Messages) == 1 && req.Messages[0].Role == openai.ChatMessageRoleUser
	})).Return(completion("Q1?\nQ2?"), nil).Once()

	got, err := a.DiscussionQuestions(ctx, "John 3:16", "For God so loved the world")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1?", "Q2?"}, got)

	m.On("CreateChatCompletion", ctx, mock.Anything).Return(openai.ChatCompletionResponse{}, errors.New("boom")).Once()
	_, err = a.DiscussionQuestions(ctx, "John 3:16", "")
	assert.Error(t, err)

	m.On("CreateChatCompletion", ctx, mock.Anything).Return(openai.ChatCompletionResponse{}, nil).Once()
	_, err = a.DiscussionQuestions(ctx, "John 3:16", "")
	assert.Error(t, err)
	m.AssertExpectations(t)
}

func TestAssistant_Reply(t *testing.T) {
	ctx := context.Background()
	m := new(completerMock)
	a := NewAssistantWithClient(m, "gpt-test")

	thread := []group.Post{
		{Body: "What is eternal life?"},
		{Body: "Knowing God.", IsAssistant: true},
		{Body: "Where does it say that?"},
	}
	m.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		if req.Model != "gpt-test" || len(req.Messages) != 4 {
			return false
		}
		return req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			req.Messages[1].Role == openai.ChatMessageRoleUser &&
			req.Messages[2].Role == openai.ChatMessageRoleAssistant &&
			req.Messages[3].Content == "Where does it say that?"
	})).Return(completion("  John 17:3.  "), nil).Once()

	got, err := a.Reply(ctx, "John 3", thread)
	require.NoError(t, err)
	assert.Equal(t, "John 17:3.", got)
	m.AssertExpectations(t)
}
