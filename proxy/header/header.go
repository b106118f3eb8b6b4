// Package header decides which headers cross each leg of the relay:
//
//	Client <--> Relay <--> Upstream LLM Provider
//
// Each leg negotiates its own connection, framing and compression, so
// those headers stop at the relay. The client's credential also stops
// here; the upstream sees only the relay's configured key.
package header

import (
	"net/http"
	"net/textproto"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// hopByHop headers describe a single transport connection.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type set map[string]struct{}

func newSet(groups ...[]string) set {
	s := set{}
	for _, g := range groups {
		for _, k := range g {
			s[textproto.CanonicalMIMEHeaderKey(k)] = struct{}{}
		}
	}
	return s
}

func (s set) has(k string) bool {
	_, ok := s[textproto.CanonicalMIMEHeaderKey(k)]
	return ok
}

var (
	// Host is rewritten by http.Transport for the upstream URL.
	// Accept-Encoding is dropped so http.Transport negotiates gzip and
	// decompresses for us. Content-Length is recomputed since the body
	// may be rewritten.
	dropRequest = newSet(hopByHop, []string{
		"Host",
		"Accept-Encoding",
		"Authorization",
		"Content-Length",
	})

	// The relayed body is always decompressed and re-framed.
	dropResponse = newSet(hopByHop, []string{
		"Content-Encoding",
		"Content-Length",
	})
)

// connectionTokens returns the extra hop-by-hop names a Connection header lists.
func connectionTokens(values ...string) set {
	s := set{}
	for _, v := range values {
		for tok := range strings.SplitSeq(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				s[textproto.CanonicalMIMEHeaderKey(tok)] = struct{}{}
			}
		}
	}
	return s
}

// Handler copies headers between the client and upstream legs.
type Handler struct {
	// credential is sent upstream as a bearer token. Empty sends none.
	credential string
}

// NewHandler returns a Handler that authenticates upstream with credential.
func NewHandler(credential string) *Handler {
	return &Handler{credential: credential}
}

// SetUpstreamRequestHeaders copies the client's request headers onto req,
// minus the ones that stop at the relay, then applies the upstream
// credential and a JSON content type.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	listed := connectionTokens(string(c.Request().Header.Peek(fiber.HeaderConnection)))

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if dropRequest.has(k) || listed.has(k) {
			return
		}
		req.Header.Add(k, string(value))
	})

	h.SetUpstreamAuth(req)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
}

// SetUpstreamAuth replaces any Authorization on req with the relay's
// credential, or removes it when none is configured.
func (h *Handler) SetUpstreamAuth(req *http.Request) {
	if h.credential == "" {
		req.Header.Del(fiber.HeaderAuthorization)
		return
	}
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.credential)
}

// SetClientResponseHeaders copies upstream response headers to the client,
// minus the ones that stop at the relay. Repeated values are comma-joined.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	listed := connectionTokens(resp.Header.Values(fiber.HeaderConnection)...)

	for k, v := range resp.Header {
		if dropResponse.has(k) || listed.has(k) {
			continue
		}
		c.Set(k, strings.Join(v, ", "))
	}
}
