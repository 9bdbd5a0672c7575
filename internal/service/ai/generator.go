package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"ragchat/internal/models"
)

// Generator produces one grounded answer per call through a chat model.
type Generator struct {
	chatModel model.BaseChatModel
	template  prompt.ChatTemplate
}

// NewGenerator wraps chatModel. facts are extra persona lines appended to
// the system instruction.
func NewGenerator(chatModel model.BaseChatModel, facts []string) (*Generator, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	return &Generator{chatModel: chatModel, template: newTemplate(facts)}, nil
}

// Messages builds the exact sequence sent to the model: one system message,
// the history in original order, then the question as the last user message.
func (g *Generator) Messages(ctx context.Context, question, retrieved string, history []models.Turn) ([]*schema.Message, error) {
	prior, err := convertHistory(history)
	if err != nil {
		return nil, err
	}
	msgs, err := g.template.Format(ctx, map[string]any{
		varContext:  retrieved,
		varHistory:  prior,
		varQuestion: question,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}
	return msgs, nil
}

// Generate returns the full text of the model's single reply.
func (g *Generator) Generate(ctx context.Context, question, retrieved string, history []models.Turn) (string, error) {
	msgs, err := g.Messages(ctx, question, retrieved, history)
	if err != nil {
		return "", err
	}
	resp, err := g.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate answer: empty response")
	}
	return resp.Content, nil
}

func convertHistory(history []models.Turn) ([]*schema.Message, error) {
	messages := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		var role schema.RoleType
		switch turn.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			return nil, fmt.Errorf("convert history: %w: %q", models.ErrInvalidRole, turn.Role)
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages, nil
}
