package nop_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
	"github.com/papercomputeco/taperelay/pkg/eventstream/nop"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

var _ = Describe("Publisher", func() {
	var publisher *nop.Publisher

	BeforeEach(func() {
		publisher = nop.NewPublisher()
	})

	It("accepts events", func() {
		rec := testutils.NewTestRecord(time.Now(), "q", "a")
		err := publisher.PublishRecord(context.Background(), eventstream.NewRecordPersistedEvent(rec, "file", time.Now()))
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher.Discarded()).To(Equal(uint64(1)))
	})

	It("rejects nil events", func() {
		err := publisher.PublishRecord(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilEvent))
		Expect(publisher.Discarded()).To(BeZero())
	})

	It("closes cleanly", func() {
		Expect(publisher.Close()).To(Succeed())
	})
})
