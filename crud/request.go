package crud

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/GoCodeAlone/mongo-mcp/document"
)

// Operation names one of the six gateway operations.
type Operation string

const (
	OpConnect    Operation = "connect"
	OpDisconnect Operation = "disconnect"
	OpCreate     Operation = "create"
	OpRead       Operation = "read"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
)

// Operations lists every operation in registration order.
var Operations = []Operation{OpConnect, OpDisconnect, OpCreate, OpRead, OpUpdate, OpDelete}

// Argument names accepted by DecodeRequest.
const (
	ArgConnectionString = "connection_string"
	ArgDatabaseName     = "database_name"
	ArgCollectionName   = "collection_name"
	ArgDocument         = "document"
	ArgFilter           = "filter"
	ArgUpdate           = "update"
	ArgUpsert           = "upsert"
	ArgLimit            = "limit"
	ArgSkip             = "skip"
)

// ConnectRequest opens a session.
type ConnectRequest struct {
	ConnectionString string
	DatabaseName     string
}

// CreateRequest inserts one document.
type CreateRequest struct {
	Collection string
	Document   *document.Document
}

// ReadRequest finds documents. A nil Filter matches everything; nil Limit
// or Skip means the option is not applied.
type ReadRequest struct {
	Collection string
	Filter     *document.Document
	Limit      *int64
	Skip       *int64
}

// UpdateRequest applies update operators to every matching document.
type UpdateRequest struct {
	Collection string
	Filter     *document.Document
	Update     *document.Document
	Upsert     bool
}

// DeleteRequest removes every matching document. Filter is required; an
// empty document matches everything.
type DeleteRequest struct {
	Collection string
	Filter     *document.Document
}

// Request is a decoded invocation. Exactly one of the per-operation fields
// is set, except for disconnect which takes no arguments.
type Request struct {
	Op      Operation
	Connect *ConnectRequest
	Create  *CreateRequest
	Read    *ReadRequest
	Update  *UpdateRequest
	Delete  *DeleteRequest
}

// collection returns the collection name the request targets, if any.
func (r Request) collection() string {
	switch {
	case r.Create != nil:
		return r.Create.Collection
	case r.Read != nil:
		return r.Read.Collection
	case r.Update != nil:
		return r.Update.Collection
	case r.Delete != nil:
		return r.Delete.Collection
	}
	return ""
}

// DecodeRequest converts transport arguments into a typed request. Shape
// errors are reported as ValidationError; presence rules that depend on the
// operation are checked later by the Service.
func DecodeRequest(op Operation, args map[string]any) (Request, error) {
	req := Request{Op: op}
	var err error
	switch op {
	case OpConnect:
		c := &ConnectRequest{}
		if c.ConnectionString, err = stringArg(args, ArgConnectionString); err != nil {
			return req, err
		}
		if c.DatabaseName, err = stringArg(args, ArgDatabaseName); err != nil {
			return req, err
		}
		req.Connect = c
	case OpDisconnect:
	case OpCreate:
		c := &CreateRequest{}
		if c.Collection, err = stringArg(args, ArgCollectionName); err != nil {
			return req, err
		}
		if c.Document, err = documentArg(args, ArgDocument); err != nil {
			return req, err
		}
		req.Create = c
	case OpRead:
		r := &ReadRequest{}
		if r.Collection, err = stringArg(args, ArgCollectionName); err != nil {
			return req, err
		}
		if r.Filter, err = documentArg(args, ArgFilter); err != nil {
			return req, err
		}
		if r.Limit, err = countArg(args, ArgLimit); err != nil {
			return req, err
		}
		if r.Skip, err = countArg(args, ArgSkip); err != nil {
			return req, err
		}
		req.Read = r
	case OpUpdate:
		u := &UpdateRequest{}
		if u.Collection, err = stringArg(args, ArgCollectionName); err != nil {
			return req, err
		}
		if u.Filter, err = documentArg(args, ArgFilter); err != nil {
			return req, err
		}
		if u.Update, err = documentArg(args, ArgUpdate); err != nil {
			return req, err
		}
		if u.Upsert, err = boolArg(args, ArgUpsert); err != nil {
			return req, err
		}
		req.Update = u
	case OpDelete:
		d := &DeleteRequest{}
		if d.Collection, err = stringArg(args, ArgCollectionName); err != nil {
			return req, err
		}
		if d.Filter, err = documentArg(args, ArgFilter); err != nil {
			return req, err
		}
		req.Delete = d
	default:
		return req, validationf(msgUnknownOperation, op)
	}
	return req, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", validationf(msgMustBeString, name, document.KindName(raw))
	}
	return s, nil
}

func boolArg(args map[string]any, name string) (bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, validationf(msgMustBeBoolean, name, document.KindName(raw))
	}
	return b, nil
}

// documentArg decodes an object argument. JSON null counts as absent. A
// string is accepted when it holds JSON object text, which keeps the
// caller's key order.
func documentArg(args map[string]any, name string) (*document.Document, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch t := raw.(type) {
	case *document.Document:
		if t == nil {
			return nil, nil
		}
		return t, nil
	case map[string]any:
		doc, err := document.FromMap(t)
		if err != nil {
			return nil, newError(KindValidation, err, msgInvalidDocument, name)
		}
		return doc, nil
	case string:
		if strings.TrimSpace(t) == "null" {
			return nil, nil
		}
		doc, err := document.Parse([]byte(t))
		if err != nil {
			return nil, newError(KindValidation, err, msgMustBeJSONObject, name)
		}
		return doc, nil
	default:
		return nil, validationf(msgMustBeObject, name, document.KindName(raw))
	}
}

// countArg decodes a non-negative integer argument.
func countArg(args map[string]any, name string) (*int64, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int64
	switch t := raw.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case float64:
		if t != math.Trunc(t) || t >= 1<<63 || t < -(1<<63) {
			return nil, validationf(msgMustBeInteger, name, t)
		}
		n = int64(t)
	case json.Number:
		v, err := t.Int64()
		if err != nil {
			return nil, validationf(msgMustBeInteger, name, t)
		}
		n = v
	default:
		return nil, validationf(msgMustBeInteger, name, document.KindName(raw))
	}
	if n < 0 {
		return nil, validationf(msgNotNegative, name, n)
	}
	return &n, nil
}
