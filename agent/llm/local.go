package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
)

// localModel adapts an Ollama server to the chat model interface the
// gateway consumes, so local and remote providers are interchangeable.
type localModel struct {
	client *api.Client
	model  string
}

// NewLocalModel builds a chat model backed by the Ollama HTTP API.
func NewLocalModel(baseURL, modelName string) (model.BaseChatModel, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url: %w", err)
	}
	return &localModel{
		client: api.NewClient(u, http.DefaultClient),
		model:  modelName,
	}, nil
}

func (m *localModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	msgs := make([]api.Message, 0, len(input))
	for _, in := range input {
		msgs = append(msgs, api.Message{
			Role:    string(in.Role),
			Content: in.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    m.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var sb strings.Builder
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: sb.String(),
	}, nil
}

func (m *localModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming is not supported by the local provider")
}
