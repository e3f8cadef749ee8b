package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/kinstory/internal/util"
)

// jsonEndpoint posts JSON to one provider's REST API
type jsonEndpoint struct {
	provider string
	baseURL  string
	headers  map[string]string
	client   *http.Client

	// errorMessage pulls the human-readable message out of an error body
	errorMessage func(body []byte) string
}

func newJSONEndpoint(provider, baseURL string, timeout time.Duration, config Config) jsonEndpoint {
	return jsonEndpoint{
		provider: provider,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		headers:  map[string]string{"Content-Type": "application/json"},
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
	}
}

// post sends in to path and decodes a 200 response into out. Any other
// status becomes a *StatusError so the retry layer can classify it.
func (e jsonEndpoint) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(raw)
		if e.errorMessage != nil {
			if m := e.errorMessage(raw); m != "" {
				msg = m
			}
		}
		return &StatusError{Provider: e.provider, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
