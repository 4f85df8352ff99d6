package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"

	"github.com/spakin/netpbm"
)

// ErrUnknownFormat is returned for frames that are neither PNM nor PNG.
var ErrUnknownFormat = errors.New("unknown image format")

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Converter turns a raw frame into the delivered image format.
type Converter interface {
	Convert(dst io.Writer, src io.Reader) error
}

// PNGConverter converts PNM frames to PNG and passes PNG frames through.
type PNGConverter struct{}

// Convert detects the frame format by its magic bytes.
func (PNGConverter) Convert(dst io.Writer, src io.Reader) error {
	br := bufio.NewReader(src)
	magic, err := br.Peek(len(pngMagic))
	if err != nil && !(errors.Is(err, io.EOF) && len(magic) >= 2) {
		return fmt.Errorf("failed to read frame header: %w", err)
	}

	switch {
	case bytes.HasPrefix(magic, pngMagic):
		if _, err := io.Copy(dst, br); err != nil {
			return fmt.Errorf("failed to copy png frame: %w", err)
		}
		return nil
	case isPNM(magic):
		img, err := netpbm.Decode(br, nil)
		if err != nil {
			return fmt.Errorf("failed to decode pnm frame: %w", err)
		}
		if err := png.Encode(dst, img); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: header %q", ErrUnknownFormat, magic)
	}
}

// isPNM matches the P1..P7 netpbm signatures.
func isPNM(magic []byte) bool {
	return len(magic) >= 2 && magic[0] == 'P' && magic[1] >= '1' && magic[1] <= '7'
}
