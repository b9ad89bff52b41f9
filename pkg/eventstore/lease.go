package eventstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// writeLease is the exclusive write lease every EventStore writer must hold.
// It is enforced two ways: an in-process mutex (so goroutines within one
// node never race) and a lock file created with O_EXCL (so a second process
// pointed at the same log fails fast instead of corrupting the chain).
//
// There is no lock renewal or heartbeat: a node either holds the lease for
// its whole process lifetime or it doesn't run as a writer at all.
type writeLease struct {
	path string
}

func acquireWriteLease(dir string) (*writeLease, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("eventstore: create log dir: %w", err)
	}
	path := filepath.Join(dir, "writer.lock")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrWriterBusy
		}
		return nil, fmt.Errorf("eventstore: acquire write lease: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("eventstore: write lease pid: %w", err)
	}

	return &writeLease{path: path}, nil
}

func (l *writeLease) release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("eventstore: release write lease: %w", err)
	}
	return nil
}
