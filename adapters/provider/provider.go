// Package provider implements the upstream model backends. Each client
// performs exactly one outbound call per invocation; retry sits above
// this layer because a partial stream cannot be resumed.
package provider

import (
	"bufio"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds the connection settings for one upstream backend.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// HTTPClient overrides the default client (testing). Streaming
	// calls strip the overall timeout and rely on ctx.
	HTTPClient *http.Client
}

func (c Config) httpClient(timeout time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

// sseDecoder reads SSE data payloads off a response body. Multi-line
// data fields are joined by "\n" per the SSE spec.
type sseDecoder struct {
	r   *bufio.Reader
	buf []string
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{r: bufio.NewReader(r)}
}

// NextData returns the next SSE data payload and io.EOF when the
// underlying reader ends.
func (d *sseDecoder) NextData() (string, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(d.buf) > 0 {
				out := strings.Join(d.buf, "\n")
				d.buf = d.buf[:0]
				return out, nil
			}
			if err == io.EOF {
				return "", io.EOF
			}
			continue
		}

		if strings.HasPrefix(line, "data:") {
			d.buf = append(d.buf, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if err == io.EOF {
			if len(d.buf) > 0 {
				out := strings.Join(d.buf, "\n")
				d.buf = d.buf[:0]
				return out, nil
			}
			return "", io.EOF
		}
	}
}
