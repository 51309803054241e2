package crud

import (
	"errors"

	"golang.org/x/text/message"

	"github.com/GoCodeAlone/mongo-mcp/document"
)

// Status is the outcome of an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the structured outcome returned to the caller for every
// invocation. Success results carry Data; failures carry ErrorKind and,
// when available, Cause.
type Result struct {
	Status    Status `json:"status"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
	Cause     string `json:"cause,omitempty"`
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Success builds a success result for data with an English message.
func Success(data Summarizer) Result {
	return SuccessIn(defaultPrinter, data)
}

// SuccessIn builds a success result for data with its message printed by p.
func SuccessIn(p *message.Printer, data Summarizer) Result {
	return Result{Status: StatusSuccess, Data: data, Message: data.Summary(p)}
}

// Failure builds a failure result from err with an English message.
func Failure(err error) Result {
	return FailureIn(defaultPrinter, err)
}

// FailureIn builds a failure result from err with its message printed by p.
// Errors that are not *Error are reported as StoreError.
func FailureIn(p *message.Printer, err error) Result {
	var e *Error
	if !errors.As(err, &e) {
		e = newError(KindStore, err, msgOperationFailed)
	}
	r := Result{Status: StatusError, ErrorKind: e.Kind, Message: e.Localize(p)}
	if e.Cause != nil {
		r.Cause = e.Cause.Error()
	}
	return r
}

// EncodingFailure reports a result that could not be serialized.
func EncodingFailure(err error) Result {
	return Failure(newError(KindStore, err, msgResultUnencodable))
}

// Summarizer is implemented by every operation payload.
type Summarizer interface {
	Summary(p *message.Printer) string
}

// ConnectData is the payload of a successful connect.
type ConnectData struct {
	Database string `json:"database"`
}

func (d ConnectData) Summary(p *message.Printer) string {
	return p.Sprintf(msgConnected, d.Database)
}

// DisconnectData is the payload of disconnect.
type DisconnectData struct {
	WasConnected bool `json:"wasConnected"`
}

func (d DisconnectData) Summary(p *message.Printer) string {
	if d.WasConnected {
		return p.Sprintf(msgDisconnected)
	}
	return p.Sprintf(msgNoConnection)
}

// CreateData is the payload of a successful create.
type CreateData struct {
	Collection string `json:"collection"`
	InsertedID string `json:"insertedId"`
	FieldCount int    `json:"fieldCount"`
}

func (d CreateData) Summary(p *message.Printer) string {
	return p.Sprintf(msgInserted, d.InsertedID, d.Collection)
}

// ReadData is the payload of a successful read. Count is the number of
// documents returned, after skip and limit.
type ReadData struct {
	Collection string               `json:"collection"`
	Count      int                  `json:"count"`
	Documents  []*document.Document `json:"documents"`
}

func (d ReadData) Summary(p *message.Printer) string {
	return p.Sprintf(msgRead, d.Count, d.Collection)
}

// UpdateData is the payload of a successful update. UpsertedID is set only
// when the update inserted a new document.
type UpdateData struct {
	Collection string `json:"collection"`
	Matched    int64  `json:"matched"`
	Modified   int64  `json:"modified"`
	UpsertedID string `json:"upsertedId,omitempty"`
}

func (d UpdateData) Summary(p *message.Printer) string {
	if d.UpsertedID != "" {
		return p.Sprintf(msgUpserted, d.Matched, d.Modified, d.Collection, d.UpsertedID)
	}
	return p.Sprintf(msgUpdated, d.Matched, d.Modified, d.Collection)
}

// DeleteData is the payload of a successful delete.
type DeleteData struct {
	Collection string `json:"collection"`
	Deleted    int64  `json:"deleted"`
}

func (d DeleteData) Summary(p *message.Printer) string {
	return p.Sprintf(msgDeleted, d.Deleted, d.Collection)
}
