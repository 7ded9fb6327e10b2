package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// DashScope talks to the native DashScope generation endpoint (Qwen).
// Every chunk carries the full accumulated text so far, so the
// suffix-diff strategy applies. Math generation is the same wire with a
// different model id.
type DashScope struct {
	name   string
	cfg    Config
	logger zerolog.Logger
}

// NewDashScope creates a DashScope text client.
func NewDashScope(name string, cfg Config, logger zerolog.Logger) *DashScope {
	return &DashScope{name: name, cfg: cfg, logger: logger}
}

func (c *DashScope) Name() string           { return c.name }
func (c *DashScope) Strategy() llm.Strategy { return llm.StrategySuffixDiff }

type dashscopeRequest struct {
	Model      string              `json:"model"`
	Input      dashscopeInput      `json:"input"`
	Parameters dashscopeParameters `json:"parameters"`
}

type dashscopeInput struct {
	Messages []wireMessage `json:"messages"`
}

type dashscopeParameters struct {
	ResultFormat string `json:"result_format"`
}

type dashscopeChunk struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	} `json:"output"`
	Usage *wireUsage `json:"usage"`
}

func (c *DashScope) generationURL() string {
	return c.cfg.BaseURL + "/services/aigc/text-generation/generation"
}

// Stream starts a streaming generation call.
func (c *DashScope) Stream(ctx context.Context, messages []llm.Message) (llm.ChunkStream, error) {
	payload, err := json.Marshal(dashscopeRequest{
		Model:      c.cfg.Model,
		Input:      dashscopeInput{Messages: toWire(messages)},
		Parameters: dashscopeParameters{ResultFormat: "message"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generationURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-DashScope-SSE", "enable")

	resp, err := c.cfg.httpClient(0).Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: c.name, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &llm.UpstreamError{Provider: c.name, Status: resp.StatusCode}
	}

	return &dashscopeStream{
		body:   resp.Body,
		dec:    newSSEDecoder(resp.Body),
		logger: c.logger,
	}, nil
}

// Complete performs a non-streaming generation call.
func (c *DashScope) Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	payload, err := json.Marshal(dashscopeRequest{
		Model:      c.cfg.Model,
		Input:      dashscopeInput{Messages: toWire(messages)},
		Parameters: dashscopeParameters{ResultFormat: "message"},
	})
	if err != nil {
		return llm.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generationURL(), bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.cfg.httpClient(60 * time.Second).Do(req)
	if err != nil {
		return llm.Completion{}, &llm.UpstreamError{Provider: c.name, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, &llm.UpstreamError{Provider: c.name, Status: resp.StatusCode}
	}

	var out dashscopeChunk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Completion{}, &llm.ParseError{What: "generation response", Cause: err}
	}
	if len(out.Output.Choices) == 0 {
		return llm.Completion{}, &llm.ParseError{What: "generation response", Cause: fmt.Errorf("no choices")}
	}

	completion := llm.Completion{Text: out.Output.Choices[0].Message.Content}
	if out.Usage != nil {
		completion.TotalTokens = out.Usage.TotalTokens
	}
	return completion, nil
}

type dashscopeStream struct {
	body   io.ReadCloser
	dec    *sseDecoder
	logger zerolog.Logger
	closed bool
}

// Recv returns the next raw chunk. DashScope reports usage on every
// chunk; only the terminal chunk's count is forwarded so one usage
// event reaches the pipeline.
func (s *dashscopeStream) Recv() (llm.RawChunk, error) {
	if s.closed {
		return llm.RawChunk{}, llm.ErrStreamClosed
	}
	for {
		data, err := s.dec.NextData()
		if err != nil {
			return llm.RawChunk{}, err
		}
		if data == doneSentinel {
			return llm.RawChunk{}, io.EOF
		}

		var chunk dashscopeChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.logger.Debug().Str("data", data).Msg("skipping malformed stream line")
			continue
		}
		if len(chunk.Output.Choices) == 0 {
			continue
		}

		choice := chunk.Output.Choices[0]
		raw := llm.RawChunk{Content: choice.Message.Content}
		if choice.FinishReason == "stop" && chunk.Usage != nil {
			raw.TotalTokens = chunk.Usage.TotalTokens
			raw.HasUsage = true
		}
		return raw, nil
	}
}

func (s *dashscopeStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Ensure interface compliance.
var _ ports.TextProvider = (*DashScope)(nil)
