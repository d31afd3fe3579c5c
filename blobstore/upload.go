package blobstore

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Close on an upload that already finished.
var ErrClosed = errors.New("blobstore: upload already finished")

var errAborted = errors.New("blobstore: upload aborted")

// Upload is a WritableBlob for object stores whose put call consumes a
// reader. Bytes written are piped to put, which runs on its own goroutine.
type Upload struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	finished bool
	err      error
}

// StartUpload starts put and returns the writer feeding it. Put sees EOF on
// Close and a read error on Abort.
func StartUpload(put func(r io.Reader) error) *Upload {
	pr, pw := io.Pipe()
	u := &Upload{pw: pw, done: make(chan error, 1)}
	go func() {
		err := put(pr)
		// A put that fails early must not leave Write blocked.
		_ = pr.CloseWithError(err)
		u.done <- err
	}()
	return u
}

// Write blocks until put has read p. After Close or Abort it returns
// io.ErrClosedPipe.
func (u *Upload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close ends the stream and returns put's result.
func (u *Upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return ErrClosed
	}
	u.finished = true
	_ = u.pw.Close()
	u.err = <-u.done
	return u.err
}

// Abort fails the stream so that put stores nothing, and waits for it to
// return. Aborting a finished upload is a no-op.
func (u *Upload) Abort() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return nil
	}
	u.finished = true
	_ = u.pw.CloseWithError(errAborted)
	<-u.done
	return nil
}

// Sync is a no-op; nothing is visible before Close.
func (u *Upload) Sync() error {
	return nil
}
