package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/storage/openwebui"
)

// ListResponse is the body of GET /records.
type ListResponse struct {
	Count   int              `json:"count"`
	Records []*record.Record `json:"records"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListRecords returns the newest records, up to the limit query
// parameter.
func (s *Server) handleListRecords(c *fiber.Ctx) error {
	if s.reader == nil {
		return s.notReadable()
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	recs, err := s.reader.List(c.Context(), limit)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	if recs == nil {
		recs = []*record.Record{}
	}

	return c.JSON(ListResponse{
		Count:   len(recs),
		Records: recs,
	})
}

// handleGetRecord returns a single record by its ID.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	if s.reader == nil {
		return s.notReadable()
	}

	id := c.Params("id")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "id parameter required")
	}

	rec, err := s.reader.Get(c.Context(), id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return fiber.NewError(fiber.StatusNotFound, "record not found")
		}
		return fmt.Errorf("getting record %s: %w", id, err)
	}

	return c.JSON(rec)
}

// handleGetChat returns a record reassembled as a chat document: the
// request's messages followed by the assistant reply.
func (s *Server) handleGetChat(c *fiber.Ctx) error {
	if s.reader == nil {
		return s.notReadable()
	}

	id := c.Params("id")
	rec, err := s.reader.Get(c.Context(), id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return fiber.NewError(fiber.StatusNotFound, "record not found")
		}
		return fmt.Errorf("getting record %s: %w", id, err)
	}

	chat, err := openwebui.BuildChat(rec)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "record request is not a chat completion")
	}

	return c.JSON(chat)
}

func (s *Server) notReadable() error {
	return fiber.NewError(fiber.StatusNotImplemented,
		"sink "+s.sink.Name()+" does not support reading records")
}

// parseLimit applies the default for an empty value and clamps to
// MaxListLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultListLimit, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}

	return min(n, MaxListLimit), nil
}
