package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/taperelay/pkg/credentials"
)

var _ = Describe("LoadDotEnv", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("loads variables from the file", func() {
		path := filepath.Join(tmpDir, ".env")
		Expect(os.WriteFile(path, []byte("TAPERELAY_TEST_DOTENV=from-file\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("TAPERELAY_TEST_DOTENV", "")
		Expect(os.Unsetenv("TAPERELAY_TEST_DOTENV")).To(Succeed())

		Expect(credentials.LoadDotEnv(path)).To(Succeed())
		Expect(os.Getenv("TAPERELAY_TEST_DOTENV")).To(Equal("from-file"))
	})

	It("does not override the existing environment", func() {
		path := filepath.Join(tmpDir, ".env")
		Expect(os.WriteFile(path, []byte("TAPERELAY_TEST_DOTENV=from-file\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("TAPERELAY_TEST_DOTENV", "from-env")

		Expect(credentials.LoadDotEnv(path)).To(Succeed())
		Expect(os.Getenv("TAPERELAY_TEST_DOTENV")).To(Equal("from-env"))
	})

	It("skips missing files", func() {
		Expect(credentials.LoadDotEnv(filepath.Join(tmpDir, "missing.env"))).To(Succeed())
	})
})

var _ = Describe("Resolve", func() {
	var mgr *credentials.Manager

	BeforeEach(func() {
		var err error
		mgr, err = credentials.NewManager(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetKey("openrouter", "sk-stored")).To(Succeed())
	})

	It("prefers the environment variable", func() {
		GinkgoT().Setenv("OPENROUTER_API_KEY", "sk-env")

		key, err := mgr.Resolve("openrouter")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-env"))
	})

	It("falls back to the stored key", func() {
		GinkgoT().Setenv("OPENROUTER_API_KEY", "")

		key, err := mgr.Resolve("openrouter")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-stored"))
	})

	It("returns empty for providers without a key", func() {
		GinkgoT().Setenv("OPENWEBUI_API_KEY", "")

		key, err := mgr.Resolve("openwebui")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(BeEmpty())
	})
})
