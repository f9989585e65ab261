package document

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = filepath.Join(GinkgoT().TempDir(), "uploads")
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the storage directory", func() {
		Expect(tmpDir).To(BeADirectory())
	})

	When("an upload is saved", func() {
		var (
			key string
			err error
		)

		JustBeforeEach(func() {
			key, err = storage.Save("doc-1_check.jpg", []byte("image bytes"))
		})

		It("should write the file to disk", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("doc-1_check.jpg"))
			Expect(filepath.Join(tmpDir, key)).To(BeAnExistingFile())
		})

		It("should read it back", func() {
			data, err := storage.Get(key)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image bytes")))
		})

		It("should delete it", func() {
			Expect(storage.Delete(key)).To(Succeed())
			Expect(filepath.Join(tmpDir, key)).NotTo(BeAnExistingFile())
		})
	})

	It("should keep keys inside the storage directory", func() {
		key, err := storage.Save("../escape.txt", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("escape.txt"))
		Expect(filepath.Join(tmpDir, "escape.txt")).To(BeAnExistingFile())
	})

	It("should return an error for missing uploads", func() {
		_, err := storage.Get("missing.pdf")
		Expect(err).To(HaveOccurred())
		Expect(storage.Delete("missing.pdf")).NotTo(Succeed())
	})
})
