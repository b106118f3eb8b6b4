package dotdir

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	var (
		cwd  string
		home string
		m    *Manager
	)

	BeforeEach(func() {
		root, err := filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		cwd = filepath.Join(root, "work")
		home = filepath.Join(root, "home")
		Expect(os.Mkdir(cwd, 0o755)).To(Succeed())
		Expect(os.Mkdir(home, 0o755)).To(Succeed())

		m = &Manager{
			getwd:   func() (string, error) { return cwd, nil },
			homeDir: func() (string, error) { return home, nil },
		}
	})

	Describe("Target", func() {
		It("creates and returns the override", func() {
			override := filepath.Join(cwd, "custom")

			dir, err := m.Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(override))
			Expect(dir).To(BeADirectory())
		})

		It("prefers the override over a local state dir", func() {
			Expect(os.Mkdir(filepath.Join(cwd, Name), 0o755)).To(Succeed())
			override := filepath.Join(cwd, "custom")

			Expect(m.Target(override)).To(Equal(override))
		})

		It("uses the local state dir when present", func() {
			local := filepath.Join(cwd, Name)
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(local))
		})

		It("ignores a local file with the state dir name", func() {
			Expect(os.WriteFile(filepath.Join(cwd, Name), nil, 0o600)).To(Succeed())

			Expect(m.Target("")).To(Equal(filepath.Join(home, Name)))
		})

		It("falls back to the home state dir and creates it", func() {
			dir, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(home, Name)))
			Expect(dir).To(BeADirectory())
		})

		It("falls back to home when the working directory is unknown", func() {
			m.getwd = func() (string, error) { return "", errors.New("gone") }

			Expect(m.Target("")).To(Equal(filepath.Join(home, Name)))
		})

		It("fails without a home directory", func() {
			m.homeDir = func() (string, error) { return "", errors.New("no home") }

			_, err := m.Target("")
			Expect(err).To(MatchError(ContainSubstring("getting home directory")))
		})
	})

	Describe("File", func() {
		It("joins the name onto the resolved directory", func() {
			path, err := m.File("", "config.toml")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(home, Name, "config.toml")))
		})
	})

	It("builds a manager over the real environment", func() {
		Expect(NewManager().getwd).NotTo(BeNil())
		Expect(NewManager().homeDir).NotTo(BeNil())
	})
})
