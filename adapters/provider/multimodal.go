package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// Multimodal talks to the DashScope multimodal generation endpoint for
// image reading (qwen-vl) and audio transcription (qwen-audio-asr).
// Both are non-streaming; the media must already be hosted at a URL.
type Multimodal struct {
	name   string
	cfg    Config
	logger zerolog.Logger

	// visionPrompt steers the image call toward a literal reading of
	// the content rather than a caption.
	visionPrompt string
}

// NewMultimodal creates a DashScope multimodal client. cfg.Model is the
// vision model; audio calls override it per request.
func NewMultimodal(name string, cfg Config, logger zerolog.Logger) *Multimodal {
	return &Multimodal{
		name:         name,
		cfg:          cfg,
		logger:       logger,
		visionPrompt: "请描述图片中的内容，若包含文字或公式请完整转写。",
	}
}

type multimodalRequest struct {
	Model string          `json:"model"`
	Input multimodalInput `json:"input"`
}

type multimodalInput struct {
	Messages []multimodalMessage `json:"messages"`
}

type multimodalMessage struct {
	Role    string           `json:"role"`
	Content []map[string]any `json:"content"`
}

type multimodalResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func (c *Multimodal) call(ctx context.Context, model string, content []map[string]any) (string, error) {
	payload, err := json.Marshal(multimodalRequest{
		Model: model,
		Input: multimodalInput{Messages: []multimodalMessage{
			{Role: "user", Content: content},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/services/aigc/multimodal-generation/generation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.cfg.httpClient(60 * time.Second).Do(req)
	if err != nil {
		return "", &llm.UpstreamError{Provider: c.name, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &llm.UpstreamError{Provider: c.name, Status: resp.StatusCode}
	}

	var out multimodalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &llm.ParseError{What: "multimodal response", Cause: err}
	}
	if len(out.Output.Choices) == 0 || len(out.Output.Choices[0].Message.Content) == 0 {
		return "", &llm.ParseError{What: "multimodal response", Cause: fmt.Errorf("no content")}
	}
	return out.Output.Choices[0].Message.Content[0].Text, nil
}

// Describe reads the content of a hosted image.
func (c *Multimodal) Describe(ctx context.Context, imageURL string) (string, error) {
	return c.call(ctx, c.cfg.Model, []map[string]any{
		{"image": imageURL},
		{"text": c.visionPrompt},
	})
}

// Transcribe transcribes a hosted audio clip.
func (c *Multimodal) Transcribe(ctx context.Context, audioURL string) (string, error) {
	return c.call(ctx, "qwen-audio-asr", []map[string]any{
		{"audio": audioURL},
	})
}

// Ensure interface compliance.
var (
	_ ports.VisionProvider = (*Multimodal)(nil)
	_ ports.AudioProvider  = (*Multimodal)(nil)
)
