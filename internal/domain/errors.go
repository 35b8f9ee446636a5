package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNotFound       = errors.New("record not found")
	// ErrSyncedStatus is returned when a caller tries to write a synced record
	// through the regular write path.
	ErrSyncedStatus = errors.New("synced status can only be set by the reconciler")
)

// StorageError reports a failed local persistence operation. The entry it
// concerns must be treated as unsaved.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type RemoteErrorKind string

const (
	KindNotFound           RemoteErrorKind = "not_found"
	KindConflict           RemoteErrorKind = "conflict"
	KindAuthRequired       RemoteErrorKind = "auth_required"
	KindNetworkUnreachable RemoteErrorKind = "network_unreachable"
	KindUnknown            RemoteErrorKind = "unknown"
)

// RemoteError is a transport failure mapped onto a small stable taxonomy.
type RemoteError struct {
	Kind RemoteErrorKind
	Op   string
	Err  error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ErrAuthRequired builds the error returned when an operation needs a session.
func ErrAuthRequired(op string) error {
	return &RemoteError{Kind: KindAuthRequired, Op: op}
}

// RemoteKind extracts the taxonomy kind from err, or "" when err is not remote.
func RemoteKind(err error) RemoteErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
