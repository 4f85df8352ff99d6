package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jbweber/virtfleet/internal/naming"
)

// capture runs one attempt: stream to a temp file, convert, publish.
func (s *Scheduler) capture(ctx context.Context, key Key, a *attempt) error {
	vm := s.source.FindVM(key.VMID)
	if vm == nil {
		return fmt.Errorf("%w: %s", ErrVMNotFound, key.VMID)
	}
	if ctx.Err() != nil {
		return ErrCanceled
	}

	stream, err := s.source.OpenScreenshot(ctx, key.VMID, key.Display)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		return fmt.Errorf("%w: failed to open stream: %v", ErrStreamFailed, err)
	}
	a.mu.Lock()
	a.stream = stream
	a.mu.Unlock()
	defer func() { _ = stream.Cancel() }()

	// Stop may have run between open and registration
	if ctx.Err() != nil {
		return ErrCanceled
	}

	tmp, err := afero.TempFile(s.fs, s.tempDir, "virtfleet-"+key.String()+"-*.pnm")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = s.fs.Remove(tmp.Name()) }()

	err = s.receive(ctx, tmp, stream)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close temp file: %w", cerr)
	}
	if err != nil {
		return err
	}

	return s.publish(tmp.Name(), s.destination(vm.HostID, key))
}

// receive copies the stream into w chunk by chunk until io.EOF.
func (s *Scheduler) receive(ctx context.Context, w io.Writer, stream io.Reader) error {
	buf := make([]byte, s.chunkSize)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrCanceled, rerr)
			}
			return fmt.Errorf("%w: %v", ErrStreamFailed, rerr)
		}
		if ctx.Err() != nil {
			return ErrCanceled
		}
	}
}

// publish converts src into dst through a .part file of its own and renames
// it in place, so readers never see a partial image and overlapping attempts
// never share a file.
func (s *Scheduler) publish(src, dst string) error {
	dir := filepath.Dir(dst)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open frame: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := afero.TempFile(s.fs, dir, filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create part file: %w", err)
	}
	part := out.Name()

	err = s.converter.Convert(out, in)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(part)
		return fmt.Errorf("failed to convert frame: %w", err)
	}

	if err := s.fs.Rename(part, dst); err != nil {
		_ = s.fs.Remove(part)
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}

func (s *Scheduler) destination(hostID string, key Key) string {
	return naming.CapturePath(s.outputDir, hostID, key.VMID, key.Display)
}
