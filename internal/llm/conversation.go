package llm

import (
	"context"
	"strings"
	"sync"
)

// Generator produces one reply for a prompt. Satisfied by CerebrasClient.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Conversation keeps per-call dialog history and threads it into each
// prompt so the model answers with context.
type Conversation struct {
	gen Generator

	mu      sync.Mutex
	history []string
}

func NewConversation(gen Generator) *Conversation {
	return &Conversation{gen: gen}
}

// SendMessage generates a reply for the utterance, carrying prior turns.
func (c *Conversation) SendMessage(ctx context.Context, utterance string) (string, error) {
	prompt := c.buildPrompt(utterance)
	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.appendExchange(utterance, reply)
	return reply, nil
}

func (c *Conversation) buildPrompt(utterance string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return utterance
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, line := range c.history {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("[USER]: ")
	b.WriteString(utterance)
	return b.String()
}

func (c *Conversation) appendExchange(utterance, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, "[USER]: "+utterance, "[ASSISTANT]: "+reply)
	// keep the prompt bounded on long calls
	const maxLines = 40
	if len(c.history) > maxLines {
		c.history = c.history[len(c.history)-maxLines:]
	}
}
