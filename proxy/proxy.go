// Package proxy provides a chat-completion relay that streams upstream
// responses to the client verbatim and records each exchange.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
	"github.com/papercomputeco/taperelay/pkg/eventstream/nop"
	"github.com/papercomputeco/taperelay/pkg/llm"
	"github.com/papercomputeco/taperelay/pkg/reassembly"
	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/sse"
	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/proxy/header"
	"github.com/papercomputeco/taperelay/proxy/worker"
)

const (
	chatCompletionsPath = "/chat/completions"
	modelsPath          = "/models"

	// maxUpstreamErrorBody caps how much of a refused call's body is logged.
	maxUpstreamErrorBody = 4 << 10
)

// Proxy relays chat completions to the upstream API.
// The proxy is transparent: upstream bytes reach the client unmodified while a
// copy is buffered. Once the upstream stream ends the buffered bytes are
// reassembled into the reply text and the exchange is persisted to the sink.
type Proxy struct {
	config        Config
	sink          storage.Sink
	workerPool    *worker.Pool
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
	modelsCache   *ristretto.Cache[string, *cachedModels]

	// now is replaced in tests.
	now func() time.Time

	// relays tracks streaming goroutines so Close can wait for their
	// records to be persisted.
	relays sync.WaitGroup
}

// exchange is the per-request state handed to the streaming goroutine.
type exchange struct {
	body      []byte
	model     string
	messages  []llm.Message
	status    int
	startedAt time.Time
}

// New creates a new Proxy.
// The sink persists one record per relayed stream. The publisher receives a
// persisted event for every record and may be nil to disable events.
func New(config Config, sink storage.Sink, publisher eventstream.Publisher, logger *zap.Logger) (*Proxy, error) {
	if sink == nil {
		return nil, errors.New("record sink is required")
	}

	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	config.setDefaults()

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	mc, err := newModelsCache(config.ModelsCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("could not create models cache: %w", err)
	}

	p := &Proxy{
		config:        config,
		sink:          sink,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(config.APIKey),
		modelsCache:   mc,
		now:           time.Now,

		// No timeout: a completion stream lasts as long as the model
		// keeps generating.
		httpClient: &http.Client{},
	}

	for _, prefix := range []string{"/api/v1", "/v1"} {
		app.Post(prefix+chatCompletionsPath, p.handleChatCompletions)
		app.Get(prefix+modelsPath, p.handleModels)
	}

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("sink", p.sink.Name()),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("sink", p.sink.Name()),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy, waits for in-flight streams to be
// persisted and then for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.relays.Wait()
	p.workerPool.Close()
	if p.modelsCache != nil {
		p.modelsCache.Close()
	}
	return err
}

// handleChatCompletions validates and forwards a chat request, then streams
// the upstream response back.
func (p *Proxy) handleChatCompletions(c *fiber.Ctx) error {
	startTime := p.now()

	// fasthttp reuses the request buffer once the handler returns, and the
	// body outlives it in the record.
	body := bytes.Clone(c.Body())

	parsedReq, err := llm.ParseChatRequest(body)
	if err != nil {
		p.logger.Warn("rejecting chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	forwardBody, model, err := p.config.ModelRewrite.Apply(body, parsedReq.Model)
	if err != nil {
		p.logger.Warn("rejecting chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	if model != parsedReq.Model {
		p.logger.Debug("rewrote model",
			zap.String("requested", parsedReq.Model),
			zap.String("forwarded", model),
		)
	}

	p.logger.Debug("parsed request",
		zap.String("model", model),
		zap.Int("message_count", len(parsedReq.Messages)),
		zap.Bool("stream", parsedReq.IsStreaming()),
	)

	upstreamURL := p.config.UpstreamURL + chatCompletionsPath

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming goroutine
	// runs after that and needs the upstream connection to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(forwardBody))
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		zap.String("url", upstreamURL),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return p.upstreamUnavailable(c, httpResp)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter uses an internal PipeConns with a buffered channel
	// (capacity 4) and two bufio.Writers, which means Flush() in the callback
	// only pushes data into the pipe, NOT to the TCP socket.
	//
	// With io.Pipe, pw.Write blocks until the reader consumes the data, and
	// the reader is fasthttp's writeBodyChunked which flushes to TCP after
	// every chunk. This gives direct backpressure and true per-chunk streaming.
	pr, pw := io.Pipe()

	p.relays.Add(1)
	go func() {
		defer p.relays.Done()
		p.relay(httpResp, pw, &exchange{
			body:      forwardBody,
			model:     model,
			messages:  parsedReq.Messages,
			status:    httpResp.StatusCode,
			startedAt: startTime,
		})
	}()

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// upstreamUnavailable answers 502 for an upstream that refused the call
// before streaming. The upstream status and the head of its body go to the
// log and the error text, never to the client as if they were its own.
func (p *Proxy) upstreamUnavailable(c *fiber.Ctx, httpResp *http.Response) error {
	defer httpResp.Body.Close()

	fields := []zap.Field{zap.Int("status", httpResp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxUpstreamErrorBody))
	if err != nil {
		fields = append(fields, zap.NamedError("body_error", err))
	}
	fields = append(fields, zap.String("body", string(body)))
	p.logger.Error("upstream returned error", fields...)

	return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
		Error: fmt.Sprintf("upstream unavailable: status %d", httpResp.StatusCode),
	})
}

// relay copies the upstream body to the pipe chunk by chunk, recording every
// byte, then finalizes the exchange. It owns httpResp and pw.
func (p *Proxy) relay(httpResp *http.Response, pw *io.PipeWriter, ex *exchange) {
	defer httpResp.Body.Close()

	tr := sse.NewTeeRecorder(httpResp.Body, pw)

	var (
		clientGone  bool
		upstreamErr error
	)

	for {
		_, err := tr.Next()
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
		case errors.Is(err, sse.ErrDestinationWrite):
			clientGone = true
			p.logger.Warn("client disconnected mid-stream",
				zap.Int("bytes_read", tr.Len()),
				zap.Error(err),
			)
		default:
			upstreamErr = err
			p.logger.Error("error reading upstream stream",
				zap.Int("bytes_read", tr.Len()),
				zap.Error(err),
			)
		}
		break
	}

	// Captured before the client response ends, so the timestamp always
	// falls inside the exchange.
	capturedAt := p.now()

	// End the client response before persisting; the sink never delays the
	// end of the stream.
	if upstreamErr != nil {
		pw.CloseWithError(upstreamErr)
	} else {
		pw.Close()
	}

	p.finalize(ex, capturedAt, tr.Bytes(), clientGone, upstreamErr)
}

// finalize reassembles the buffered stream into a record and persists it.
// Persistence failures are logged and never retried.
func (p *Proxy) finalize(ex *exchange, capturedAt time.Time, buf []byte, clientGone bool, upstreamErr error) {
	result := reassembly.Reassemble(buf)

	meta := record.Meta{
		Model:              ex.model,
		Mode:               result.Mode,
		Status:             ex.status,
		DurationMs:         capturedAt.Sub(ex.startedAt).Milliseconds(),
		UpstreamBytes:      len(buf),
		ClientDisconnected: clientGone,
	}
	if upstreamErr != nil {
		meta.UpstreamError = upstreamErr.Error()
	}

	p.countTokens(&meta, ex, result.Text)

	rec := record.New(capturedAt, ex.body, result.Text, meta)

	p.logger.Debug("stream complete",
		zap.String("record_id", rec.ID),
		zap.String("mode", string(result.Mode)),
		zap.Int("lines", result.Lines),
		zap.Int("events", result.Events),
		zap.Bool("terminated", result.Terminated),
		zap.Int("response_length", len(result.Text)),
		zap.Duration("duration", capturedAt.Sub(ex.startedAt)),
	)

	if err := p.sink.Persist(context.Background(), rec); err != nil {
		p.logger.Error("failed to persist record",
			zap.String("record_id", rec.ID),
			zap.String("sink", p.sink.Name()),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("record persisted",
		zap.String("record_id", rec.ID),
		zap.String("sink", p.sink.Name()),
		zap.String("model", ex.model),
	)

	p.workerPool.Enqueue(worker.Job{
		Record: rec,
		Sink:   p.sink.Name(),
	})
}

// countTokens fills the token estimates when a tokenizer is configured.
// Estimation failures leave the counts unset.
func (p *Proxy) countTokens(meta *record.Meta, ex *exchange, reply string) {
	if p.config.Tokenizer == nil {
		return
	}

	prompt, err := p.config.Tokenizer.CountMessages(ex.messages, ex.model)
	if err != nil {
		p.logger.Debug("could not count prompt tokens", zap.String("model", ex.model), zap.Error(err))
		return
	}

	completion, err := p.config.Tokenizer.CountText(reply, ex.model)
	if err != nil {
		p.logger.Debug("could not count completion tokens", zap.String("model", ex.model), zap.Error(err))
		return
	}

	meta.PromptTokens = prompt
	meta.CompletionTokens = completion
}
