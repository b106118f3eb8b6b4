package api

import (
	"errors"
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/llm"
	"github.com/papercomputeco/taperelay/pkg/storage"
)

// Server is the read-only review API over a record sink.
type Server struct {
	config Config
	sink   storage.Sink
	reader storage.Reader
	logger *zap.Logger
	app    *fiber.App
}

// NewServer builds the API over sink, which may be shared with a proxy in
// the same process. Record routes answer 501 when sink cannot read back.
func NewServer(config Config, sink storage.Sink, logger *zap.Logger) *Server {
	s := &Server{
		config: config,
		sink:   sink,
		logger: logger,
	}
	if r, ok := sink.(storage.Reader); ok {
		s.reader = r
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Get("/ping", s.handlePing)

	records := s.app.Group("/records")
	records.Get("/", s.handleListRecords)
	records.Get("/:id", s.handleGetRecord)
	records.Get("/:id/chat", s.handleGetChat)

	return s
}

// handleError renders errors that escape a handler, unknown routes
// included, in the same JSON shape the handlers use.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	} else {
		s.logger.Error("unhandled API error", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(llm.ErrorResponse{Error: msg})
}

// Run listens on the configured address until Shutdown.
func (s *Server) Run() error {
	s.logStart(s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener serves on listener until Shutdown.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logStart(listener.Addr().String())
	return s.app.Listener(listener)
}

func (s *Server) logStart(addr string) {
	s.logger.Info("starting API server",
		zap.String("listen", addr),
		zap.String("sink", s.sink.Name()),
		zap.Bool("readable", s.reader != nil),
	)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
