package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrMalformedDocument is returned when the source bytes cannot be parsed as a PDF.
var ErrMalformedDocument = errors.New("malformed PDF document")

// ErrStampingFailed is returned for any rendering or embedding failure.
// Callers must not assume partial results.
var ErrStampingFailed = errors.New("failed to stamp PDF with QR code")

const (
	// QR side length in points, anchored bottom-right of the last page.
	qrSize = 80
	// Distance from the page edges.
	qrMargin = 20

	captionText   = "Scan to confirm delivery"
	captionPoints = 8
)

// Stamper embeds QR verification codes into shipment PDFs.
// It is pure: no I/O beyond its inputs and outputs.
type Stamper struct {
	conf *model.Configuration
}

// NewStamper creates a stamper with relaxed validation, matching what
// real-world courier PDFs need.
func NewStamper() *Stamper {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Stamper{conf: conf}
}

// Stamp renders a QR code for verificationURL and embeds it, with a caption,
// onto the last page of src. The input bytes are treated as read-only; the
// result is a fresh serialization of the whole document.
func (s *Stamper) Stamp(src []byte, verificationURL string) ([]byte, error) {
	pageCount, err := api.PageCount(bytes.NewReader(src), s.conf)
	if err != nil {
		return nil, ErrMalformedDocument
	}
	if pageCount == 0 {
		return nil, ErrMalformedDocument
	}

	qrPNG, err := qrcode.Encode(verificationURL, qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Msg("QR code rendering failed")
		return nil, ErrStampingFailed
	}

	lastPage := []string{strconv.Itoa(pageCount)}

	// QR image, natural size, bottom-right with a fixed margin.
	imgDesc := fmt.Sprintf("pos:br, off:-%d %d, rot:0, sc:1 abs", qrMargin, qrMargin)
	imgWM, err := api.ImageWatermarkForReader(bytes.NewReader(qrPNG), imgDesc, true, false, types.POINTS)
	if err != nil {
		log.Error().Err(err).Msg("QR watermark construction failed")
		return nil, ErrStampingFailed
	}

	var withQR bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(src), &withQR, lastPage, imgWM, s.conf); err != nil {
		log.Error().Err(err).Msg("QR embedding failed")
		return nil, ErrStampingFailed
	}

	// Caption just beneath the QR code.
	txtDesc := fmt.Sprintf("fontname:Helvetica, points:%d, pos:br, off:-%d %d, rot:0", captionPoints, qrMargin, qrMargin-10)
	txtWM, err := api.TextWatermark(captionText, txtDesc, true, false, types.POINTS)
	if err != nil {
		log.Error().Err(err).Msg("caption watermark construction failed")
		return nil, ErrStampingFailed
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(withQR.Bytes()), &out, lastPage, txtWM, s.conf); err != nil {
		log.Error().Err(err).Msg("caption embedding failed")
		return nil, ErrStampingFailed
	}

	return out.Bytes(), nil
}
