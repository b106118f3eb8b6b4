package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/llm"
	"github.com/papercomputeco/taperelay/pkg/logger"
	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage/inmemory"
	"github.com/papercomputeco/taperelay/pkg/storage/openwebui"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

// brokenReader is a readable sink whose reads always fail.
type brokenReader struct {
	*testutils.MockSink
}

func (brokenReader) List(context.Context, int) ([]*record.Record, error) {
	return nil, errors.New("disk on fire")
}

func (brokenReader) Get(context.Context, string) (*record.Record, error) {
	return nil, errors.New("disk on fire")
}

func get(s *Server, path string) (int, []byte) {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, body
}

var _ = Describe("Server", func() {
	var (
		driver *inmemory.Driver
		server *Server
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		server = NewServer(Config{ListenAddr: ":0"}, driver, logger.Nop())
	})

	persistAt := func(at time.Time, response string) *record.Record {
		rec := testutils.NewTestRecord(at, "hi", response)
		Expect(driver.Persist(ctx, rec)).To(Succeed())
		return rec
	}

	It("answers ping", func() {
		status, body := get(server, "/ping")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("GET /records", func() {
		It("returns an empty list when nothing is stored", func() {
			status, body := get(server, "/records")
			Expect(status).To(Equal(http.StatusOK))

			var resp ListResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(0))
			Expect(resp.Records).To(BeEmpty())
			Expect(string(body)).To(ContainSubstring(`"records":[]`))
		})

		It("returns records newest first", func() {
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			older := persistAt(base, "first")
			newer := persistAt(base.Add(time.Minute), "second")

			status, body := get(server, "/records")
			Expect(status).To(Equal(http.StatusOK))

			var resp ListResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Records[0].ID).To(Equal(newer.ID))
			Expect(resp.Records[1].ID).To(Equal(older.ID))
		})

		It("honors the limit query parameter", func() {
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			for i := range 5 {
				persistAt(base.Add(time.Duration(i)*time.Second), "reply")
			}

			status, body := get(server, "/records?limit=2")
			Expect(status).To(Equal(http.StatusOK))

			var resp ListResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Records).To(HaveLen(2))
		})

		DescribeTable("rejects invalid limits",
			func(limit string) {
				status, body := get(server, "/records?limit="+limit)
				Expect(status).To(Equal(http.StatusBadRequest))

				var errResp llm.ErrorResponse
				Expect(json.Unmarshal(body, &errResp)).To(Succeed())
				Expect(errResp.Error).To(ContainSubstring("limit"))
			},
			Entry("zero", "0"),
			Entry("negative", "-3"),
			Entry("not a number", "ten"),
		)
	})

	Describe("GET /records/:id", func() {
		It("returns the stored record", func() {
			rec := persistAt(time.Now(), "Hello!")

			status, body := get(server, "/records/"+rec.ID)
			Expect(status).To(Equal(http.StatusOK))

			var got record.Record
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got.ID).To(Equal(rec.ID))
			Expect(got.Response).To(Equal("Hello!"))
		})

		It("returns 404 for an unknown id", func() {
			status, body := get(server, "/records/nope")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(string(body)).To(ContainSubstring("record not found"))
		})
	})

	Describe("GET /records/:id/chat", func() {
		It("returns the request messages followed by the reply", func() {
			rec := persistAt(time.Now(), "Hello!")

			status, body := get(server, "/records/"+rec.ID+"/chat")
			Expect(status).To(Equal(http.StatusOK))

			var chat openwebui.Chat
			Expect(json.Unmarshal(body, &chat)).To(Succeed())
			Expect(chat.Messages).To(HaveLen(2))
			Expect(chat.Messages[0].Role).To(Equal("user"))
			Expect(chat.Messages[0].Content).To(Equal("hi"))
			Expect(chat.Messages[1].Role).To(Equal("assistant"))
			Expect(chat.Messages[1].Content).To(Equal("Hello!"))
		})

		It("returns 404 for an unknown id", func() {
			status, body := get(server, "/records/nope/chat")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(string(body)).To(ContainSubstring("record not found"))
		})

		It("returns 422 when the request was not a chat completion", func() {
			rec := record.New(time.Now(), []byte("not json"), "reply", record.Meta{Status: 200})
			Expect(driver.Persist(ctx, rec)).To(Succeed())

			status, _ := get(server, "/records/"+rec.ID+"/chat")
			Expect(status).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	It("answers unknown routes with a JSON error", func() {
		status, body := get(server, "/nowhere")
		Expect(status).To(Equal(http.StatusNotFound))

		var errResp llm.ErrorResponse
		Expect(json.Unmarshal(body, &errResp)).To(Succeed())
		Expect(errResp.Error).NotTo(BeEmpty())
	})

	Context("when the sink fails to read", func() {
		BeforeEach(func() {
			server = NewServer(Config{ListenAddr: ":0"}, brokenReader{testutils.NewMockSink()}, logger.Nop())
		})

		DescribeTable("answers 500 with the shared JSON error",
			func(path string) {
				status, body := get(server, path)
				Expect(status).To(Equal(http.StatusInternalServerError))
				Expect(body).To(MatchJSON(`{"error":"internal error"}`))
			},
			Entry("list", "/records"),
			Entry("get", "/records/abc"),
			Entry("chat", "/records/abc/chat"),
		)
	})

	Context("when the sink cannot read records", func() {
		BeforeEach(func() {
			server = NewServer(Config{ListenAddr: ":0"}, testutils.NewMockSink(), logger.Nop())
		})

		It("answers 501 on the record routes", func() {
			status, body := get(server, "/records")
			Expect(status).To(Equal(http.StatusNotImplemented))
			Expect(string(body)).To(ContainSubstring("does not support reading"))

			status, _ = get(server, "/records/anything")
			Expect(status).To(Equal(http.StatusNotImplemented))

			status, _ = get(server, "/records/anything/chat")
			Expect(status).To(Equal(http.StatusNotImplemented))
		})

		It("still answers ping", func() {
			status, _ := get(server, "/ping")
			Expect(status).To(Equal(http.StatusOK))
		})
	})
})

var _ = DescribeTable("parseLimit",
	func(raw string, expected int) {
		n, err := parseLimit(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(expected))
	},
	Entry("empty uses default", "", DefaultListLimit),
	Entry("in range", "10", 10),
	Entry("clamped", "10000", MaxListLimit),
)
