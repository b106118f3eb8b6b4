package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/storage/postgres"
	testutils "github.com/papercomputeco/taperelay/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("TAPERELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("TAPERELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		_, err = driver.DB.ExecContext(ctx, "TRUNCATE records")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("persists, gets and lists records", func() {
		older := testutils.NewTestRecord(time.Now().Add(-time.Minute), "first", "one")
		newer := testutils.NewTestRecord(time.Now(), "second", "two")
		Expect(driver.Persist(ctx, older)).To(Succeed())
		Expect(driver.Persist(ctx, newer)).To(Succeed())

		got, err := driver.Get(ctx, older.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Response).To(Equal("one"))

		recs, err := driver.List(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(2))
		Expect(recs[0].ID).To(Equal(newer.ID))
	})

	It("returns NotFoundError for unknown IDs", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
	})

	It("fails to connect to an unreachable server", func() {
		_, err := postgres.NewDriver(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewDriver", func() {
	It("rejects a malformed connection string without a server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://relay:pw@host:notaport/db")
		Expect(err).To(MatchError(ContainSubstring("parsing connection string")))
		Expect(err.Error()).NotTo(ContainSubstring(":pw@"))
	})

	It("names the target when the server is unreachable", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := postgres.NewDriver(ctx, "postgres://relay@127.0.0.1:1/records?sslmode=disable&connect_timeout=1")
		Expect(err).To(MatchError(ContainSubstring("connecting to 127.0.0.1:1/records")))
	})
})
