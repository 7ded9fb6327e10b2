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

const doneSentinel = "[DONE]"

// OpenAI talks to OpenAI-compatible chat endpoints (Moonshot/Kimi).
// These backends send true deltas, so the pass-through strategy
// applies.
type OpenAI struct {
	name   string
	cfg    Config
	logger zerolog.Logger
}

// NewOpenAI creates an OpenAI-compatible client. name identifies the
// backend in logs and errors ("moonshot").
func NewOpenAI(name string, cfg Config, logger zerolog.Logger) *OpenAI {
	return &OpenAI{name: name, cfg: cfg, logger: logger}
}

func (c *OpenAI) Name() string           { return c.name }
func (c *OpenAI) Strategy() llm.Strategy { return llm.StrategyPassThrough }

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []wireMessage  `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

func toWire(msgs []llm.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (c *OpenAI) post(ctx context.Context, body any, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	timeout := 60 * time.Second
	if stream {
		// No overall deadline on a stream; ctx bounds it instead.
		timeout = 0
	}
	resp, err := c.cfg.httpClient(timeout).Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: c.name, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &llm.UpstreamError{Provider: c.name, Status: resp.StatusCode}
	}
	return resp, nil
}

// Stream starts a streaming generation call.
func (c *OpenAI) Stream(ctx context.Context, messages []llm.Message) (llm.ChunkStream, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:         c.cfg.Model,
		Messages:      toWire(messages),
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}, true)
	if err != nil {
		return nil, err
	}
	return &openaiStream{
		body:   resp.Body,
		dec:    newSSEDecoder(resp.Body),
		logger: c.logger,
	}, nil
}

// Complete performs a non-streaming generation call.
func (c *OpenAI) Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:    c.cfg.Model,
		Messages: toWire(messages),
	}, false)
	if err != nil {
		return llm.Completion{}, err
	}
	defer resp.Body.Close()

	var out openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Completion{}, &llm.ParseError{What: "chat completion", Cause: err}
	}
	if len(out.Choices) == 0 {
		return llm.Completion{}, &llm.ParseError{What: "chat completion", Cause: fmt.Errorf("no choices")}
	}

	completion := llm.Completion{Text: out.Choices[0].Message.Content}
	if out.Usage != nil {
		completion.TotalTokens = out.Usage.TotalTokens
	}
	return completion, nil
}

type openaiStream struct {
	body   io.ReadCloser
	dec    *sseDecoder
	logger zerolog.Logger
	closed bool
}

// Recv returns the next raw chunk. Lines that are not valid chunk JSON
// are skipped; the sentinel line ends the stream.
func (s *openaiStream) Recv() (llm.RawChunk, error) {
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

		var chunk openaiChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.logger.Debug().Str("data", data).Msg("skipping malformed stream line")
			continue
		}

		raw := llm.RawChunk{}
		if len(chunk.Choices) > 0 {
			raw.Content = chunk.Choices[0].Delta.Content
		}
		if chunk.Usage != nil {
			raw.TotalTokens = chunk.Usage.TotalTokens
			raw.HasUsage = true
		}
		return raw, nil
	}
}

func (s *openaiStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Ensure interface compliance.
var _ ports.TextProvider = (*OpenAI)(nil)
