package proxy

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/papercomputeco/taperelay/pkg/tokenizer"
)

const (
	// DefaultUpstreamURL is the OpenRouter API base.
	DefaultUpstreamURL = "https://openrouter.ai/api/v1"

	// DefaultRewriteMarker is the model-name substring that triggers the rewrite.
	DefaultRewriteMarker = "cloood"

	// DefaultRewriteTarget is the model a marked request is sent to.
	DefaultRewriteTarget = "anthropic/claude-3.5-sonnet:beta"

	// DefaultModelsTimeout bounds the model-listing passthrough.
	DefaultModelsTimeout = 10 * time.Second

	// DefaultModelsCacheTTL is how long a successful model listing is reused.
	DefaultModelsCacheTTL = 5 * time.Minute
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream API base (e.g., "https://openrouter.ai/api/v1").
	// Chat completions go to <UpstreamURL>/chat/completions.
	UpstreamURL string

	// APIKey is the upstream credential, sent as a bearer token.
	APIKey string

	// ModelRewrite is applied to every chat request before forwarding.
	// A zero value means DefaultModelRewrite.
	ModelRewrite ModelRewrite

	// ModelsTimeout bounds GET /models. Chat streams have no timeout.
	ModelsTimeout time.Duration

	// ModelsCacheTTL is how long GET /models responses are cached.
	// Zero means DefaultModelsCacheTTL and a negative value disables caching.
	ModelsCacheTTL time.Duration

	// Tokenizer, when set, estimates prompt and completion token counts
	// for each record.
	Tokenizer tokenizer.Counter
}

func (c *Config) setDefaults() {
	if c.UpstreamURL == "" {
		c.UpstreamURL = DefaultUpstreamURL
	}
	c.UpstreamURL = strings.TrimRight(c.UpstreamURL, "/")

	if c.ModelRewrite == (ModelRewrite{}) {
		c.ModelRewrite = DefaultModelRewrite()
	}

	if c.ModelsTimeout == 0 {
		c.ModelsTimeout = DefaultModelsTimeout
	}

	if c.ModelsCacheTTL == 0 {
		c.ModelsCacheTTL = DefaultModelsCacheTTL
	}
}

// ModelRewrite replaces the requested model with Target when the requested
// name contains Marker.
type ModelRewrite struct {
	Marker string
	Target string
}

// DefaultModelRewrite returns the built-in rewrite rule.
func DefaultModelRewrite() ModelRewrite {
	return ModelRewrite{
		Marker: DefaultRewriteMarker,
		Target: DefaultRewriteTarget,
	}
}

// Rewrite returns the model to forward and whether it differs from model.
func (r ModelRewrite) Rewrite(model string) (string, bool) {
	if r.Marker == "" || !strings.Contains(model, r.Marker) {
		return model, false
	}
	return r.Target, true
}

// Apply rewrites the "model" field of a JSON request body. Every other field
// is left byte-for-byte as it was. The returned model is the one that will be
// forwarded.
func (r ModelRewrite) Apply(body []byte, model string) ([]byte, string, error) {
	target, ok := r.Rewrite(model)
	if !ok {
		return body, model, nil
	}

	out, err := sjson.SetBytes(body, "model", target)
	if err != nil {
		return nil, "", fmt.Errorf("rewriting model %q: %w", model, err)
	}

	return out, target, nil
}
