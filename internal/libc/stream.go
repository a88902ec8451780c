package libc

import (
	"fmt"
	"io"
	"sync"

	"github.com/roach88/fnmodels/internal/guest"
)

// Handles of the standard console streams.
const (
	Stdout uint64 = 1
	Stderr uint64 = 2
)

// IsConsole reports whether handle names stdout or stderr.
func IsConsole(handle uint64) bool {
	return handle == Stdout || handle == Stderr
}

// Streams is the FILE table of a Library. Handles are opaque to the guest
// and 0 is the null stream.
//
// Thread-safety: all methods are safe for concurrent use.
type Streams struct {
	mu      sync.Mutex
	writers map[uint64]io.Writer
	next    uint64
}

// NewStreams creates a table with stdout and stderr bound.
func NewStreams(stdout, stderr io.Writer) *Streams {
	return &Streams{
		writers: map[uint64]io.Writer{Stdout: stdout, Stderr: stderr},
		next:    Stderr + 1,
	}
}

// Open registers w and returns its handle.
func (s *Streams) Open(w io.Writer) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.writers[h] = w
	return h
}

// Close forgets handle. Writing to it afterwards faults.
func (s *Streams) Close(handle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.writers, handle)
}

func (s *Streams) writer(handle uint64) (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writers[handle]
	if !ok {
		return nil, &guest.FaultError{Addr: handle}
	}
	return w, nil
}

func (s *Streams) write(handle uint64, p []byte) error {
	w, err := s.writer(handle)
	if err != nil {
		return err
	}
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("stream %d: %w", handle, err)
	}
	return nil
}
