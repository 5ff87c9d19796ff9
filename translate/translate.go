package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Translator converts text between the supported languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target Lang) (string, error)
}

const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator calls the public Google Translate gtx endpoint. It needs
// no API key and is rate limited upstream; production deployments should
// front it with their own quota handling.
type GoogleTranslator struct {
	client   *http.Client
	endpoint string
}

// GoogleTranslatorOptions configures a GoogleTranslator.
type GoogleTranslatorOptions struct {
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Endpoint overrides the translation URL, used by tests.
	Endpoint string
}

// NewGoogleTranslator constructs a translator against the public endpoint.
func NewGoogleTranslator(optFns ...func(o *GoogleTranslatorOptions)) *GoogleTranslator {
	opts := GoogleTranslatorOptions{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   defaultEndpoint,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GoogleTranslator{client: opts.HTTPClient, endpoint: opts.Endpoint}
}

// Translate implements Translator.
func (g *GoogleTranslator) Translate(ctx context.Context, text string, source, target Lang) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", string(source))
	q.Set("tl", string(target))
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build translate request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read translate response: %w", err)
	}

	return parseGtxResponse(body)
}

// parseGtxResponse extracts the translated segments from the gtx nested
// array payload: [[["translated","original",...],...],...].
func parseGtxResponse(body []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("unexpected translate response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate response")
	}

	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected translate response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("translate response contained no text")
	}
	return b.String(), nil
}

// StaticTranslator is a deterministic fixture translator backed by a lookup
// table, for tests and offline demos. Missing entries echo the input.
type StaticTranslator struct {
	entries map[string]string
}

// NewStaticTranslator builds a fixture translator from text→translation
// pairs.
func NewStaticTranslator(entries map[string]string) *StaticTranslator {
	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &StaticTranslator{entries: copied}
}

// Translate implements Translator.
func (s *StaticTranslator) Translate(_ context.Context, text string, _, _ Lang) (string, error) {
	if out, ok := s.entries[text]; ok {
		return out, nil
	}
	return text, nil
}
