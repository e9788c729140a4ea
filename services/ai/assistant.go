// Package aisvc generates group discussion content with an OpenAI compatible chat model.
package aisvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/group"
)

const (
	maxQuestions = 5

	questionsPrompt = `You lead a small-group Bible study. Write %d open discussion questions about the passage below.
Answer with one question per line, without numbering or any other text.

%s

%s`

	replyPrompt = `You are a humble, well-read study companion in a small-group Bible study about %s.
Answer the latest message of the discussion in at most 150 words. Stay close to the text,
mention other passages when they help, and invite the group to keep thinking.`
)

// ChatCompleter is the part of *openai.Client the assistant needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Assistant struct {
	client ChatCompleter
	model  string
}

var _ group.Assistant = (*Assistant)(nil)

// NewAssistant returns nil when no API key is configured.
func NewAssistant(conf *core.Config) *Assistant {
	if conf.OpenAI.APIKey == "" {
		return nil
	}
	clientConf := openai.DefaultConfig(conf.OpenAI.APIKey)
	if conf.OpenAI.BaseURL != "" {
		clientConf.BaseURL = conf.OpenAI.BaseURL
	}
	return NewAssistantWithClient(openai.NewClientWithConfig(clientConf), conf.OpenAI.Model)
}

func NewAssistantWithClient(client ChatCompleter, model string) *Assistant {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Assistant{client: client, model: model}
}

func (a *Assistant) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (a *Assistant) DiscussionQuestions(ctx context.Context, passage, text string) ([]string, error) {
	content, err := a.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(questionsPrompt, maxQuestions, passage, text),
		},
	})
	if err != nil {
		return nil, err
	}
	return parseQuestions(content), nil
}

// parseQuestions keeps one question per non-empty line, stripping list markers.
func parseQuestions(content string) []string {
	questions := make([]string, 0, maxQuestions)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == maxQuestions {
			break
		}
	}
	return questions
}

func (a *Assistant) Reply(ctx context.Context, passage string, thread []group.Post) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(thread)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(replyPrompt, passage),
	})
	for _, p := range thread {
		role := openai.ChatMessageRoleUser
		if p.IsAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: p.Body})
	}
	return a.complete(ctx, messages)
}
