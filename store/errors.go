package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/topology"
)

// IsConnectionLost reports whether err means the client can no longer reach
// the store.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		mongo.IsNetworkError(err) ||
		isServerSelection(err)
}

// isServerSelection reports a failure to find any usable server, which the
// driver raises once the deployment has gone away.
func isServerSelection(err error) bool {
	var sel topology.ServerSelectionError
	if errors.As(err, &sel) {
		return true
	}
	var selPtr *topology.ServerSelectionError
	return errors.As(err, &selPtr)
}

// classify marks driver errors that mean the connection is gone with
// ErrConnectionLost, keeping the driver error in the chain.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConnectionLost) || !IsConnectionLost(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDuplicateKey) || mongo.IsDuplicateKeyError(err)
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err)
}
