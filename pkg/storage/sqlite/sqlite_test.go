package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/reassembly"
	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2024, 7, 1, 10, 0, 0, 123456789, time.UTC)

		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			s, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports its name", func() {
			Expect(driver.Name()).To(Equal("sqlite"))
		})
	})

	Describe("Persist and Get", func() {
		It("round-trips every field", func() {
			rec := testutils.NewTestRecord(base, "What is 2+2?", "4")
			rec.Meta.DurationMs = 42
			rec.Meta.UpstreamBytes = 1024
			rec.Meta.ClientDisconnected = true

			Expect(driver.Persist(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(rec.ID))
			Expect(got.Timestamp).To(BeTemporally("==", rec.Timestamp))
			Expect(got.Request).To(MatchJSON(rec.Request))
			Expect(got.Response).To(Equal("4"))
			Expect(got.Meta).To(Equal(rec.Meta))
			Expect(got.Meta.Mode).To(Equal(reassembly.ModeStream))
		})

		It("rejects duplicate IDs", func() {
			rec := testutils.NewTestRecord(base, "q", "a")
			Expect(driver.Persist(ctx, rec)).To(Succeed())
			Expect(driver.Persist(ctx, rec)).NotTo(Succeed())
		})

		It("returns NotFoundError for unknown IDs", func() {
			_, err := driver.Get(ctx, "01J000000000000000000000")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})

		It("rejects nil records", func() {
			Expect(driver.Persist(ctx, nil)).To(MatchError(storage.ErrNilRecord))
		})
	})

	Describe("List", func() {
		It("returns records newest first", func() {
			var ids []string
			for i := range 3 {
				rec := testutils.NewTestRecord(base.Add(time.Duration(i)*time.Minute), "q", "a")
				Expect(driver.Persist(ctx, rec)).To(Succeed())
				ids = append(ids, rec.ID)
			}

			recs, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(3))
			Expect(recs[0].ID).To(Equal(ids[2]))
			Expect(recs[2].ID).To(Equal(ids[0]))

			recs, err = driver.List(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].ID).To(Equal(ids[2]))
		})

		It("returns nothing for an empty store", func() {
			recs, err := driver.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})
})
