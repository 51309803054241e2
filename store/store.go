// Package store is the document store capability used by the session and
// CRUD layers. Documents, filters and updates are exchanged in the driver's
// native ordered representation (bson.D); converting store values into
// transport-safe ones is the caller's job.
//
// Backends: MongoDB (mongodb:// and mongodb+srv:// descriptors) and an
// in-memory store (memory:// descriptors) useful for tests and local runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrConnectionLost reports that the connection behind a client is gone.
	// A session holding such a client must be dropped.
	ErrConnectionLost = errors.New("store: connection lost")

	// ErrMalformedDescriptor reports a connection string that cannot be used.
	ErrMalformedDescriptor = errors.New("store: malformed connection descriptor")

	// ErrDuplicateKey reports a unique index violation.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Dialer opens clients from connection descriptors.
type Dialer interface {
	// Dial creates a client for uri. It does not guarantee the store is
	// reachable; call Client.Ping for that.
	Dial(ctx context.Context, uri string) (Client, error)
}

// Client is a handle to a store deployment.
type Client interface {
	// Ping performs a lightweight round trip against the store.
	Ping(ctx context.Context) error

	// Database returns a handle to the named logical database.
	Database(name string) Database

	// Close releases the client's connections.
	Close(ctx context.Context) error
}

// Database is a logical database within a deployment.
type Database interface {
	Name() string
	Collection(name string) Collection
}

// Collection exposes the primitives the CRUD layer needs.
type Collection interface {
	// InsertOne inserts doc and returns its identifier in the store's
	// native type.
	InsertOne(ctx context.Context, doc bson.D) (any, error)

	// Find returns every document matching filter, skipping and limiting
	// in the store's cursor order.
	Find(ctx context.Context, filter bson.D, opts FindOptions) ([]bson.D, error)

	// UpdateMany applies update to every document matching filter.
	UpdateMany(ctx context.Context, filter, update bson.D, upsert bool) (UpdateResult, error)

	// DeleteMany removes every document matching filter and returns how
	// many were removed.
	DeleteMany(ctx context.Context, filter bson.D) (int64, error)
}

// FindOptions bound a Find. Nil fields are unset. A zero Limit means no
// limit, as in the MongoDB cursor API.
type FindOptions struct {
	Skip  *int64
	Limit *int64
}

// UpdateResult summarizes an UpdateMany call.
type UpdateResult struct {
	Matched  int64
	Modified int64
	// UpsertedID is the native identifier of the inserted document when
	// the update upserted, nil otherwise.
	UpsertedID any
}

// Options configures the dialers returned by NewDialer.
type Options struct {
	AppName                string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	OperationTimeout       time.Duration
}

// SchemeDialer routes descriptors to a backend by URI scheme.
type SchemeDialer struct {
	Mongo  Dialer
	Memory *MemoryDialer
}

// NewDialer returns a dialer handling mongodb://, mongodb+srv:// and
// memory:// descriptors.
func NewDialer(opts Options) *SchemeDialer {
	return &SchemeDialer{
		Mongo:  NewMongoDialer(opts),
		Memory: NewMemoryDialer(),
	}
}

// Dial implements Dialer.
func (d *SchemeDialer) Dial(ctx context.Context, uri string) (Client, error) {
	switch {
	case strings.HasPrefix(uri, MemoryScheme) && d.Memory != nil:
		return d.Memory.Dial(ctx, uri)
	case (strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")) && d.Mongo != nil:
		return d.Mongo.Dial(ctx, uri)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrMalformedDescriptor, RedactURI(uri))
	}
}

// RedactURI strips user credentials from a connection descriptor so it can
// be logged.
func RedactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "<invalid>"
	}
	// Query strings may carry secrets such as tlsCertificateKeyFilePassword,
	// with or without a path before them.
	rest, _, _ = strings.Cut(rest, "?")
	authority, path, hasPath := strings.Cut(rest, "/")
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		authority = "***@" + authority[at+1:]
	}
	if hasPath {
		return scheme + "://" + authority + "/" + path
	}
	return scheme + "://" + authority
}
