package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrReconciliation is wrapped by every error that aborts a pass after
	// the snapshot was fetched.
	ErrReconciliation = errors.New("reconciliation failed")

	// ErrPublicAddress is returned when a public address needed by a tracked
	// record could not be resolved.
	ErrPublicAddress = fmt.Errorf("%w: could not resolve public address", ErrReconciliation)

	// ErrUnsupportedType is returned for a tracked record that is neither A
	// nor AAAA.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported record type", ErrReconciliation)
)
