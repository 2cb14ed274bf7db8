// openai.go
//
// Phase-gated SDLC document generation and versioning service
// Copyright (c) 2026 Expeed Software (https://www.expeed.com)
//
// This file is part of opnxt-core.
// opnxt-core is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// opnxt-core is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with opnxt-core.
// If not, see <https://www.gnu.org/licenses/>.

package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amcq-expeed/opnxt-core/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const openaiSystemPrompt = "You are an SDLC documentation writer. Produce the requested " +
	"artifact as complete markdown. Reference requirements by their identifiers " +
	"(BR-*, FR-*, NFR-*) wherever they apply."

// OpenAIGenerator synthesizes artifact content with the OpenAI chat
// completion API. The request inherits the caller's context, so generation
// timeouts cancel the HTTP call.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator from the OPENAI_API_KEY environment
// variable and the configured model.
func NewOpenAIGenerator(model string) (*OpenAIGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate asks the model for the artifact content, passing the context
// snapshot as JSON.
func (g *OpenAIGenerator) Generate(ctx context.Context, artifact string, project models.Project, projCtx map[string]interface{}) ([]byte, error) {
	ctxJSON, err := json.MarshalIndent(projCtx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode project context: %w", err)
	}

	prompt := fmt.Sprintf(
		"Write the %s for project %q (current phase: %s).\n\nProject context:\n```json\n%s\n```",
		artifact, project.Name, project.CurrentPhase, ctxJSON)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openaiSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
