package store

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrIO is returned when opening, reading, writing, renaming or removing
	// one of the store files fails.
	ErrIO = errors.New("io error")

	// ErrLockPoisoned is returned when a goroutine panicked while holding
	// one of the store locks.
	ErrLockPoisoned = errors.New("lock poisoned")

	// ErrCorruptIndex is returned when the index snapshot cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrTruncatedRead is returned when the value log holds fewer bytes than
	// the index promises.
	ErrTruncatedRead = errors.New("truncated read")

	// ErrSerialization is returned when a value fails to encode or decode.
	ErrSerialization = errors.New("serialization error")

	// ErrKeyNotFound is returned by Delete for a key that is not in the index.
	ErrKeyNotFound = errors.New("key not found")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("store closed")
)

// kindError ties an underlying cause to one of the sentinel kinds above,
// so both errors.Is(err, ErrIO) and errors.Is(err, fs.ErrNotExist) hold.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error { return e.err }

func (e *kindError) Is(target error) bool { return target == e.kind }

func newKindError(kind, err error, format string, args ...any) error {
	if err == nil {
		err = pkgerrors.Errorf(format, args...)
	} else {
		err = pkgerrors.Wrapf(err, format, args...)
	}
	return &kindError{kind: kind, err: err}
}

func ioErr(err error, format string, args ...any) error {
	return newKindError(ErrIO, err, format, args...)
}

func corruptErr(format string, args ...any) error {
	return newKindError(ErrCorruptIndex, nil, format, args...)
}

func serializationErr(err error, format string, args ...any) error {
	return newKindError(ErrSerialization, err, format, args...)
}
