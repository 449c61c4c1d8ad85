package pdf

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
)

// A minimal single-page document with a correct xref table.
const minimalPDF = "%PDF-1.4\n" +
	"1 0 obj\n" +
	"<< /Type /Catalog /Pages 2 0 R >>\n" +
	"endobj\n" +
	"2 0 obj\n" +
	"<< /Type /Pages /Kids [3 0 R] /Count 1 >>\n" +
	"endobj\n" +
	"3 0 obj\n" +
	"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\n" +
	"endobj\n" +
	"xref\n" +
	"0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000058 00000 n \n" +
	"0000000115 00000 n \n" +
	"trailer\n" +
	"<< /Size 4 /Root 1 0 R >>\n" +
	"startxref\n" +
	"186\n" +
	"%%EOF\n"

func TestStampRejectsMalformedInput(t *testing.T) {
	stamper := NewStamper()

	_, err := stamper.Stamp([]byte("not a pdf at all"), "https://x.test/verify/abc")
	require.ErrorIs(t, err, ErrMalformedDocument)

	_, err = stamper.Stamp(nil, "https://x.test/verify/abc")
	require.ErrorIs(t, err, ErrMalformedDocument)
}

func TestStampEmbedsQRCode(t *testing.T) {
	stamper := NewStamper()

	src := []byte(minimalPDF)
	srcCopy := make([]byte, len(src))
	copy(srcCopy, src)

	out, err := stamper.Stamp(src, "https://portal.example.com/verify/0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.NotEqual(t, src, out)

	// Input bytes are read-only
	require.Equal(t, srcCopy, src)

	// The result is still a valid document with the same page count
	pageCount, err := api.PageCount(bytes.NewReader(out), stamper.conf)
	require.NoError(t, err)
	require.Equal(t, 1, pageCount)

	// A stamped document grows: it now carries the QR image and caption
	require.Greater(t, len(out), len(src))
}

func TestStampDifferentTokensProduceDifferentOutput(t *testing.T) {
	stamper := NewStamper()

	a, err := stamper.Stamp([]byte(minimalPDF), "https://x.test/verify/aaaa")
	require.NoError(t, err)
	b, err := stamper.Stamp([]byte(minimalPDF), "https://x.test/verify/bbbb")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}
