package types

import (
	"errors"
	"fmt"
)

// Errors returned by volume operations. Every one of them leaves the volume
// unchanged; callers match them with errors.Is.
var (
	ErrNoSpace           = errors.New("no space left on device")
	ErrNoInodes          = errors.New("no free inodes")
	ErrNoHandles         = errors.New("too many open files")
	ErrNotFound          = errors.New("no such file or directory")
	ErrNameExists        = errors.New("file exists")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidHandle     = errors.New("bad file handle")
	ErrIsADirectory      = errors.New("is a directory")
	ErrNotADirectory     = errors.New("not a directory")
	ErrFileBusy          = errors.New("resource busy")
	ErrBadMode           = errors.New("operation not permitted by open mode")
	ErrInvalidName       = errors.New("invalid file name")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFormatted      = errors.New("volume is not formatted")
)

// OpError records a failed operation and the path or handle it was applied to.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with the operation and path. A nil err stays nil.
func NewOpError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Path: path, Err: err}
}
