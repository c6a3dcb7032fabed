package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func solidImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

var _ = Describe("toPNG", func() {
	var (
		data        []byte
		contentType string
		out         []byte
		err         error
	)

	JustBeforeEach(func() {
		out, err = toPNG(data, contentType)
	})

	When("the document is already PNG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, solidImage())).To(Succeed())
			data = buf.Bytes()
			contentType = "image/png"
		})

		It("should pass it through unchanged", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
		})
	})

	When("the document is JPEG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, solidImage(), nil)).To(Succeed())
			data = buf.Bytes()
			contentType = " Image/JPEG "
		})

		It("should re-encode it as PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			img, format, decodeErr := image.Decode(bytes.NewReader(out))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
			Expect(img.Bounds().Dx()).To(Equal(4))
		})
	})

	When("the format is unknown", func() {
		BeforeEach(func() {
			data = []byte("plain text, not an image")
			contentType = "text/plain"
		})

		It("should list the supported formats", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})

	When("a PDF cannot be opened", func() {
		BeforeEach(func() {
			data = []byte("not a pdf")
			contentType = "application/pdf"
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("converting PDF to image")))
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("should detect the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEIC(data, "application/octet-stream")).To(BeTrue())
	})

	It("should fall back to the content type", func() {
		Expect(isHEIC([]byte("xx"), "image/heif")).To(BeTrue())
	})

	It("should reject other images", func() {
		Expect(isHEIC([]byte("\x89PNG\r\n\x1a\n0000"), "image/png")).To(BeFalse())
	})
})
