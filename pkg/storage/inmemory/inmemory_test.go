package inmemory_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		base = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	})

	It("persists and gets a record", func() {
		rec := testutils.NewTestRecord(base, "hi", "hello")
		Expect(driver.Persist(ctx, rec)).To(Succeed())

		got, err := driver.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(rec))
	})

	It("returns NotFoundError for unknown IDs", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
	})

	It("rejects nil records", func() {
		Expect(driver.Persist(ctx, nil)).To(MatchError(storage.ErrNilRecord))
	})

	It("lists newest first and honours the limit", func() {
		var ids []string
		for i := range 3 {
			rec := testutils.NewTestRecord(base.Add(time.Duration(i)*time.Second), "q", "a")
			Expect(driver.Persist(ctx, rec)).To(Succeed())
			ids = append(ids, rec.ID)
		}

		all, err := driver.List(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].ID).To(Equal(ids[2]))
		Expect(all[2].ID).To(Equal(ids[0]))

		limited, err := driver.List(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(limited).To(HaveLen(2))
		Expect(limited[0].ID).To(Equal(ids[2]))
	})

	It("is safe for concurrent persists", func() {
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(driver.Persist(ctx, testutils.NewTestRecord(time.Now(), "q", "a"))).To(Succeed())
			}()
		}
		wg.Wait()

		Expect(driver.Records()).To(HaveLen(50))
	})

	It("identifies itself", func() {
		Expect(driver.Name()).To(Equal("memory"))
		Expect(driver.Close()).To(Succeed())
	})
})
