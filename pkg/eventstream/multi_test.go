package eventstream_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

var _ = Describe("MultiPublisher", func() {
	var (
		first, second *testutils.MockPublisher
		multi         *eventstream.MultiPublisher
		event         *eventstream.RecordPersistedEvent
	)

	BeforeEach(func() {
		first = testutils.NewMockPublisher()
		second = testutils.NewMockPublisher()
		multi = eventstream.NewMultiPublisher(first, nil, second)

		rec := testutils.NewTestRecord(time.Now(), "q", "a")
		event = eventstream.NewRecordPersistedEvent(rec, "file", time.Now())
	})

	It("publishes to every backend", func() {
		Expect(multi.PublishRecord(context.Background(), event)).To(Succeed())
		Expect(first.Events()).To(ConsistOf(event))
		Expect(second.Events()).To(ConsistOf(event))
	})

	It("keeps publishing after a failure and reports it", func() {
		first.FailPublish = true

		err := multi.PublishRecord(context.Background(), event)
		Expect(err).To(MatchError(testutils.ErrMockPublish))
		Expect(second.Events()).To(HaveLen(1))
	})

	It("rejects nil events", func() {
		Expect(multi.PublishRecord(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("closes every backend", func() {
		Expect(multi.Close()).To(Succeed())
		Expect(first.Closed()).To(BeTrue())
		Expect(second.Closed()).To(BeTrue())
	})
})
