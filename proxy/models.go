package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/llm"
)

// modelsCacheMaxCost bounds the cached model listings in bytes.
const modelsCacheMaxCost = 16 << 20

// cachedModels is a successful upstream model listing.
type cachedModels struct {
	status int
	header http.Header
	body   []byte
}

// newModelsCache returns nil when caching is disabled.
func newModelsCache(ttl time.Duration) (*ristretto.Cache[string, *cachedModels], error) {
	if ttl <= 0 {
		return nil, nil
	}

	return ristretto.NewCache(&ristretto.Config[string, *cachedModels]{
		NumCounters: 1e4,
		MaxCost:     modelsCacheMaxCost,
		BufferItems: 64,
	})
}

// handleModels proxies the upstream model listing verbatim. Successful
// listings are cached per query string for ModelsCacheTTL.
func (p *Proxy) handleModels(c *fiber.Ctx) error {
	key := string(c.Request().URI().QueryString())

	if p.modelsCache != nil {
		if m, ok := p.modelsCache.Get(key); ok {
			p.logger.Debug("serving cached model list", zap.String("query", key))
			p.headerHandler.SetClientResponseHeaders(c, &http.Response{Header: m.header})
			return c.Status(m.status).Send(m.body)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.ModelsTimeout)
	defer cancel()

	upstreamURL := p.config.UpstreamURL + modelsPath
	if key != "" {
		upstreamURL += "?" + key
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}
	p.headerHandler.SetUpstreamAuth(httpReq)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream models request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "failed to read upstream response"})
	}

	if p.modelsCache != nil && httpResp.StatusCode == http.StatusOK {
		p.modelsCache.SetWithTTL(key, &cachedModels{
			status: httpResp.StatusCode,
			header: httpResp.Header.Clone(),
			body:   respBody,
		}, int64(len(respBody)), p.config.ModelsCacheTTL)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	return c.Status(httpResp.StatusCode).Send(respBody)
}
