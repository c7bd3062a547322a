package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

const describePrompt = "Describe what is shown in this video frame. Be specific and list the main items and colors."

// Describer produces a text description of a saved frame
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// AgentConfig selects the Ollama server and vision model
type AgentConfig struct {
	BaseURL string
	Port    int
	Model   string
}

// VisionDescriber describes frames with a local Ollama vision model
type VisionDescriber struct {
	agent *agent.DefaultAgent
}

// NewVisionDescriber initializes the vision agent after checking Ollama is reachable
func NewVisionDescriber(ctx context.Context, cfg AgentConfig, logger *slog.Logger) (*VisionDescriber, error) {
	if err := pingOllama(ctx, cfg); err != nil {
		return nil, err
	}

	// Set up Ollama provider
	opts := &ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	}
	provider := ollama.NewProvider(opts)
	provider.UseModel(ctx, &types.Model{ID: cfg.Model})

	agentConf := &agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: "You are a visual analysis assistant. Describe video frames briefly and precisely.",
	}

	return &VisionDescriber{agent: agent.NewAgent(agentConf)}, nil
}

func pingOllama(ctx context.Context, cfg AgentConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama at %s returned %s", url, resp.Status)
	}
	return nil
}

// Describe asks the model about the image at imagePath
func (d *VisionDescriber) Describe(ctx context.Context, imagePath string) (string, error) {
	response := d.agent.Run(
		ctx,
		agent.WithInput(describePrompt),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	// The last message is the model's reply
	return response.Messages[len(response.Messages)-1].Content, nil
}
