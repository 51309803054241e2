// Package crud implements the gateway's six operations over a session
// manager: input validation, the single store interaction per operation,
// result normalization and failure classification.
package crud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GoCodeAlone/mongo-mcp/document"
	"github.com/GoCodeAlone/mongo-mcp/observability/tracing"
	"github.com/GoCodeAlone/mongo-mcp/session"
	"github.com/GoCodeAlone/mongo-mcp/store"
)

// Observer receives the outcome of every operation. outcome is "success"
// or the failure Kind.
type Observer interface {
	ObserveOperation(op, outcome string, d time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for per-operation log lines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithOperationTimeout bounds every data operation's store call. Zero
// leaves the caller's context and the driver's own timeouts in charge.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithTracer sets the tracer for operation spans.
func WithTracer(t *tracing.OperationTracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLanguage selects the language of result messages. Languages without
// a catalog fall back to English.
func WithLanguage(lang language.Tag) Option {
	return func(s *Service) { s.printer = NewPrinter(lang) }
}

// Service runs operations against the session held by a session.Manager.
type Service struct {
	sessions *session.Manager
	logger   *slog.Logger
	observer Observer
	tracer   *tracing.OperationTracer
	printer  *message.Printer
	timeout  time.Duration
}

// NewService creates a Service bound to sessions.
func NewService(sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		logger:   slog.Default(),
		tracer:   tracing.NewOperationTracer(nil),
		printer:  defaultPrinter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the session manager the service operates on.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Invoke decodes args for op, runs it and returns its Result. It never
// returns an error: every failure is converted into a failure Result.
func (s *Service) Invoke(ctx context.Context, op Operation, args map[string]any) Result {
	start := time.Now()
	opID := uuid.NewString()

	req, err := DecodeRequest(op, args)
	collection := req.collection()
	if collection == "" {
		if name, ok := args[ArgCollectionName].(string); ok {
			collection = name
		}
	}

	ctx, span := s.tracer.Start(ctx, string(op), opID, collection)
	var data Summarizer
	if err == nil {
		data, err = s.dispatch(ctx, req)
	}
	kind := KindOf(err)
	if err != nil && kind == "" {
		kind = KindStore
	}
	s.tracer.End(span, string(kind), err)

	elapsed := time.Since(start)
	s.record(op, opID, collection, elapsed, kind, err)

	if err != nil {
		return FailureIn(s.printer, err)
	}
	return SuccessIn(s.printer, data)
}

func (s *Service) dispatch(ctx context.Context, req Request) (Summarizer, error) {
	switch req.Op {
	case OpConnect:
		return s.Connect(ctx, *req.Connect)
	case OpDisconnect:
		return s.Disconnect(ctx)
	case OpCreate:
		return s.Create(ctx, *req.Create)
	case OpRead:
		return s.Read(ctx, *req.Read)
	case OpUpdate:
		return s.Update(ctx, *req.Update)
	case OpDelete:
		return s.Delete(ctx, *req.Delete)
	}
	return nil, validationf(msgUnknownOperation, req.Op)
}

func (s *Service) record(op Operation, opID, collection string, d time.Duration, kind Kind, err error) {
	outcome := string(StatusSuccess)
	if err != nil {
		outcome = string(kind)
	}
	if s.observer != nil {
		s.observer.ObserveOperation(string(op), outcome, d)
	}

	attrs := []any{"op", op, "op_id", opID, "duration", d}
	if collection != "" {
		attrs = append(attrs, "collection", collection)
	}
	if err != nil {
		attrs = append(attrs, "kind", kind, "err", err)
		s.logger.Warn("operation failed", attrs...)
		return
	}
	s.logger.Info("operation completed", attrs...)
}

// Connect opens a session on req.DatabaseName, replacing any active one.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (ConnectData, error) {
	if req.ConnectionString == "" {
		return ConnectData{}, validationf(msgRequired, ArgConnectionString)
	}
	if err := validateDatabase(req.DatabaseName); err != nil {
		return ConnectData{}, err
	}
	if err := s.sessions.Acquire(ctx, req.ConnectionString, req.DatabaseName); err != nil {
		key := msgConnectFailed
		switch {
		case errors.Is(err, store.ErrMalformedDescriptor):
			key = msgMalformedURI
		case store.IsTimeout(err):
			key = msgConnectTimeout
		}
		return ConnectData{}, newError(KindConnection, err, key)
	}
	return ConnectData{Database: req.DatabaseName}, nil
}

// Disconnect closes the active session. It succeeds when there is none.
func (s *Service) Disconnect(ctx context.Context) (DisconnectData, error) {
	released, err := s.sessions.Release(ctx)
	if err != nil {
		s.logger.Warn("closing store client failed", "err", err)
	}
	return DisconnectData{WasConnected: released}, nil
}

// Create inserts req.Document into req.Collection.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateData, error) {
	if err := validateCollection(req.Collection); err != nil {
		return CreateData{}, err
	}
	if err := requireDocument(req.Document, ArgDocument); err != nil {
		return CreateData{}, err
	}

	var id any
	err := s.withCollection(ctx, req.Collection, func(ctx context.Context, c store.Collection) error {
		var err error
		id, err = c.InsertOne(ctx, req.Document.ToBSON())
		return err
	})
	if err != nil {
		return CreateData{}, err
	}
	return CreateData{
		Collection: req.Collection,
		InsertedID: document.Stringify(id),
		FieldCount: req.Document.Len(),
	}, nil
}

// Read returns the documents matching req.Filter, skipping then limiting.
func (s *Service) Read(ctx context.Context, req ReadRequest) (ReadData, error) {
	if err := validateCollection(req.Collection); err != nil {
		return ReadData{}, err
	}
	if err := validateCount(req.Limit, ArgLimit); err != nil {
		return ReadData{}, err
	}
	if err := validateCount(req.Skip, ArgSkip); err != nil {
		return ReadData{}, err
	}
	filter := req.Filter
	if filter == nil {
		filter = document.New()
	}

	var found []*document.Document
	err := s.withCollection(ctx, req.Collection, func(ctx context.Context, c store.Collection) error {
		docs, err := c.Find(ctx, filter.ToBSON(), store.FindOptions{Skip: req.Skip, Limit: req.Limit})
		if err != nil {
			return err
		}
		found = make([]*document.Document, 0, len(docs))
		for _, d := range docs {
			found = append(found, document.FromBSON(d))
		}
		return nil
	})
	if err != nil {
		return ReadData{}, err
	}
	return ReadData{Collection: req.Collection, Count: len(found), Documents: found}, nil
}

// Update applies req.Update to every document matching req.Filter.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (UpdateData, error) {
	if err := validateCollection(req.Collection); err != nil {
		return UpdateData{}, err
	}
	if err := requireDocument(req.Filter, ArgFilter); err != nil {
		return UpdateData{}, err
	}
	if err := requireDocument(req.Update, ArgUpdate); err != nil {
		return UpdateData{}, err
	}
	if err := validateUpdateOperators(req.Update); err != nil {
		return UpdateData{}, err
	}

	var res store.UpdateResult
	err := s.withCollection(ctx, req.Collection, func(ctx context.Context, c store.Collection) error {
		var err error
		res, err = c.UpdateMany(ctx, req.Filter.ToBSON(), req.Update.ToBSON(), req.Upsert)
		return err
	})
	if err != nil {
		return UpdateData{}, err
	}
	data := UpdateData{Collection: req.Collection, Matched: res.Matched, Modified: res.Modified}
	if res.UpsertedID != nil {
		data.UpsertedID = document.Stringify(res.UpsertedID)
	}
	return data, nil
}

// Delete removes every document matching req.Filter.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (DeleteData, error) {
	if err := validateCollection(req.Collection); err != nil {
		return DeleteData{}, err
	}
	if err := requireDocument(req.Filter, ArgFilter); err != nil {
		return DeleteData{}, err
	}

	var deleted int64
	err := s.withCollection(ctx, req.Collection, func(ctx context.Context, c store.Collection) error {
		var err error
		deleted, err = c.DeleteMany(ctx, req.Filter.ToBSON())
		return err
	})
	if err != nil {
		return DeleteData{}, err
	}
	return DeleteData{Collection: req.Collection, Deleted: deleted}, nil
}

// withCollection runs fn against the named collection of the active
// session and classifies its failure.
func (s *Service) withCollection(ctx context.Context, name string, fn func(context.Context, store.Collection) error) error {
	err := s.sessions.WithActive(ctx, func(client store.Client, database string) error {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return fn(ctx, client.Database(database).Collection(name))
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrNotConnected) {
		return newError(KindNotConnected, nil, msgNotConnected)
	}
	return newError(KindStore, err, storeMessage(err))
}

func storeMessage(err error) string {
	switch {
	case store.IsConnectionLost(err):
		return msgConnectionLost
	case store.IsDuplicateKey(err):
		return msgDuplicateKey
	case store.IsTimeout(err):
		return msgStoreTimeout
	case errors.Is(err, store.ErrUnsupportedOperator):
		return msgUnsupportedOp
	case errors.Is(err, context.Canceled):
		return msgCanceled
	}
	return msgStoreFailed
}
