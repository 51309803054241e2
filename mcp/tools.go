package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GoCodeAlone/mongo-mcp/crud"
)

// Resource URIs.
const (
	SessionResourceURI = "mongo://session"
	UsageResourceURI   = "mongo://docs/usage"
)

const documentHint = " May also be given as a JSON object encoded in a string; use {\"$oid\": \"...\"} for ObjectIds."

// registerTools registers one tool per gateway operation.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpConnect),
			mcp.WithDescription("Connect to a MongoDB deployment and select the database every other tool works on. Replaces any existing connection."),
			mcp.WithString(crud.ArgConnectionString,
				mcp.Required(),
				mcp.Description("MongoDB connection string, e.g. mongodb://localhost:27017"),
			),
			mcp.WithString(crud.ArgDatabaseName,
				mcp.Required(),
				mcp.Description("Name of the database to use"),
			),
			mcp.WithOpenWorldHintAnnotation(true),
		),
		s.handler(crud.OpConnect),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpDisconnect),
			mcp.WithDescription("Close the current connection. Succeeds when there is none."),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		),
		s.handler(crud.OpDisconnect),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpCreate),
			mcp.WithDescription("Insert one document into a collection. Returns the inserted _id as a string."),
			withCollection(),
			mcp.WithObject(crud.ArgDocument,
				mcp.Required(),
				mcp.Description("The document to insert."+documentHint),
			),
			mcp.WithDestructiveHintAnnotation(false),
		),
		s.handler(crud.OpCreate),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpRead),
			mcp.WithDescription("Find documents in a collection. Applies skip before limit; returns every matching document when no limit is given."),
			withCollection(),
			mcp.WithObject(crud.ArgFilter,
				mcp.Description("Query filter in MongoDB syntax. Omit to match every document."+documentHint),
			),
			mcp.WithNumber(crud.ArgLimit,
				mcp.Description("Maximum number of documents to return; 0 means no limit"),
				mcp.Min(0),
			),
			mcp.WithNumber(crud.ArgSkip,
				mcp.Description("Number of matching documents to skip"),
				mcp.Min(0),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handler(crud.OpRead),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpUpdate),
			mcp.WithDescription("Apply update operators to every document matching the filter."),
			withCollection(),
			mcp.WithObject(crud.ArgFilter,
				mcp.Required(),
				mcp.Description("Query filter; {} matches every document."+documentHint),
			),
			mcp.WithObject(crud.ArgUpdate,
				mcp.Required(),
				mcp.Description("Update document whose keys are operators such as $set or $inc."+documentHint),
			),
			mcp.WithBoolean(crud.ArgUpsert,
				mcp.Description("Insert a document when nothing matches. Default: false"),
			),
			mcp.WithDestructiveHintAnnotation(true),
		),
		s.handler(crud.OpUpdate),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(string(crud.OpDelete),
			mcp.WithDescription("Delete every document matching the filter. The filter is required; pass {} to empty the collection."),
			withCollection(),
			mcp.WithObject(crud.ArgFilter,
				mcp.Required(),
				mcp.Description("Query filter in MongoDB syntax."+documentHint),
			),
			mcp.WithDestructiveHintAnnotation(true),
		),
		s.handler(crud.OpDelete),
	)
}

func withCollection() mcp.ToolOption {
	return mcp.WithString(crud.ArgCollectionName,
		mcp.Required(),
		mcp.Description("Name of the collection"),
	)
}

// handler adapts op to an mcp-go tool handler. Failures are reported as
// error tool results carrying the JSON failure result, never as protocol
// errors.
func (s *Server) handler(op crud.Operation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult(s.service.Invoke(ctx, op, req.GetArguments())), nil
	}
}

func toolResult(res crud.Result) *mcp.CallToolResult {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		res = crud.EncodingFailure(err)
		data, _ = json.MarshalIndent(res, "", "  ")
	}
	if !res.OK() {
		return mcp.NewToolResultError(string(data))
	}
	return mcp.NewToolResultText(string(data))
}

// registerResources registers the session status and usage resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			SessionResourceURI,
			"Session status",
			mcp.WithResourceDescription("Whether a connection is open, to which database and host, and since when."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleSessionStatus,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(
			UsageResourceURI,
			"Usage guide",
			mcp.WithResourceDescription("How to call the tools, with filter and update examples and the error kinds."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.handleUsageDocs,
	)
}

func (s *Server) handleSessionStatus(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.service.Sessions().Status(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session status: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SessionResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleUsageDocs(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      UsageResourceURI,
			MIMEType: "text/markdown",
			Text:     docsUsage,
		},
	}, nil
}
