package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const copyBufferSize = 64 * 1024

var errSameFile = errors.New("source and destination are the same file")

func (e *Engine) copyFile(src, dst string) error {
	info, err := e.fs.Stat(src)
	if err != nil {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst,
			Err: fmt.Errorf("source is not a regular file (mode %s)", info.Mode())}
	}

	// Truncating dst would empty src when both name the same inode.
	if dstInfo, err := e.fs.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: errSameFile}
	}

	in, err := e.fs.Open(src)
	if err != nil {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}
	defer in.Close()

	perm := info.Mode().Perm()
	var out *os.File
	err = e.guard.Do(func() error {
		var openErr error
		out, openErr = e.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		return openErr
	})
	if err != nil {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(eintrWriter{w: out}, in, buf); err != nil {
		out.Close()
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}
	// Close before chtimes: flushing may touch mtime.
	if err := out.Close(); err != nil {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}

	// O_CREATE's mode is filtered by the umask.
	if err := e.fs.Chmod(dst, perm); err != nil {
		return &OpError{Kind: KindIOFailure, Op: "copy", Path: src, Target: dst, Err: err}
	}

	if err := e.fs.Chtimes(dst, accessTime(info), info.ModTime()); err != nil {
		e.logger.Warn("could not preserve timestamps", zap.String("dst", dst), zap.Error(err))
	}
	return nil
}

// eintrWriter retries writes interrupted by a signal.
type eintrWriter struct {
	w io.Writer
}

func (ew eintrWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := ew.w.Write(p[written:])
		written += n
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
