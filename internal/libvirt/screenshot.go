package libvirt

import (
	"errors"
	"io"
	"sync"
)

// ErrStreamCanceled fails the transfer's pending write after Cancel.
// Read returns io.ErrClosedPipe from then on.
var ErrStreamCanceled = errors.New("screenshot stream canceled")

// screenshotStream exposes a libvirt screenshot transfer as a reader.
// The transfer goroutine writes into the pipe; Cancel closes the read side,
// which fails the next write and aborts the libvirt stream.
type screenshotStream struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	once sync.Once
}

func newScreenshotStream() *screenshotStream {
	pr, pw := io.Pipe()
	return &screenshotStream{r: pr, w: pw}
}

// start runs transfer in its own goroutine. A nil result ends the stream
// with io.EOF.
func (s *screenshotStream) start(transfer func(w io.Writer) error) {
	go func() {
		_ = s.w.CloseWithError(transfer(s.w))
	}()
}

func (s *screenshotStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Cancel is idempotent and never fails.
func (s *screenshotStream) Cancel() error {
	s.once.Do(func() {
		_ = s.r.CloseWithError(ErrStreamCanceled)
	})
	return nil
}
