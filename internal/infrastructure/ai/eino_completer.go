package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/doeshing/sentry-go/internal/ports"
)

// einoCompleter adapts an eino chat model to a single-turn completer.
type einoCompleter struct {
	name  string
	model model.BaseChatModel
}

func (c *einoCompleter) Name() string {
	return c.name
}

func (c *einoCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.User))

	reply, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if reply == nil {
		return "", nil
	}
	return strings.TrimSpace(reply.Content), nil
}
