package crud

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_Read(t *testing.T) {
	req, err := DecodeRequest(OpRead, map[string]any{
		ArgCollectionName: "items",
		ArgFilter:         `{"z": 1, "a": {"$gt": 2}}`,
		ArgLimit:          json.Number("10"),
		ArgSkip:           3.0,
	})
	require.NoError(t, err)
	require.NotNil(t, req.Read)
	assert.Equal(t, "items", req.collection())
	assert.Equal(t, []string{"z", "a"}, req.Read.Filter.Keys(), "JSON text keeps key order")
	require.NotNil(t, req.Read.Limit)
	require.NotNil(t, req.Read.Skip)
	assert.Equal(t, int64(10), *req.Read.Limit)
	assert.Equal(t, int64(3), *req.Read.Skip)
}

func TestDecodeRequest_AbsentVersusEmpty(t *testing.T) {
	absent, err := DecodeRequest(OpDelete, map[string]any{ArgCollectionName: "c"})
	require.NoError(t, err)
	assert.Nil(t, absent.Delete.Filter)

	null, err := DecodeRequest(OpDelete, map[string]any{ArgCollectionName: "c", ArgFilter: nil})
	require.NoError(t, err)
	assert.Nil(t, null.Delete.Filter)

	empty, err := DecodeRequest(OpDelete, map[string]any{ArgCollectionName: "c", ArgFilter: map[string]any{}})
	require.NoError(t, err)
	require.NotNil(t, empty.Delete.Filter)
	assert.Zero(t, empty.Delete.Filter.Len())

	read, err := DecodeRequest(OpRead, map[string]any{ArgCollectionName: "c"})
	require.NoError(t, err)
	assert.Nil(t, read.Read.Limit)
	assert.Nil(t, read.Read.Skip)
}

func TestDecodeRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		args map[string]any
	}{
		{"array document", OpCreate, map[string]any{ArgDocument: []any{}}},
		{"JSON array text", OpCreate, map[string]any{ArgDocument: `[1, 2]`}},
		{"duplicate keys in text", OpCreate, map[string]any{ArgDocument: `{"a": 1, "a": 2}`}},
		{"boolean filter", OpRead, map[string]any{ArgFilter: true}},
		{"fractional limit", OpRead, map[string]any{ArgLimit: 2.5}},
		{"negative skip", OpRead, map[string]any{ArgSkip: -1.0}},
		{"huge limit", OpRead, map[string]any{ArgLimit: 1e19}},
		{"non-integer number", OpRead, map[string]any{ArgLimit: json.Number("1.5")}},
		{"string upsert", OpUpdate, map[string]any{ArgUpsert: "true"}},
		{"numeric collection", OpDelete, map[string]any{ArgCollectionName: 1.0}},
		{"numeric database", OpConnect, map[string]any{ArgDatabaseName: 1.0}},
		{"unknown operation", Operation("aggregate"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.op, tt.args)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestValidateNames(t *testing.T) {
	for _, name := range []string{"items", "a.b", "Orders_2024"} {
		assert.NoError(t, validateCollection(name), name)
	}
	for _, name := range []string{"", "a$b", "system.profile", "nul\x00"} {
		assert.Error(t, validateCollection(name), name)
	}
	for _, name := range []string{"app", "my-db", "db_1"} {
		assert.NoError(t, validateDatabase(name), name)
	}
	for _, name := range []string{"", "a/b", `a\b`, "a.b", "a b", `a"b`, "a$b", "a\x00"} {
		assert.Error(t, validateDatabase(name), name)
	}
}

func TestOperations_Complete(t *testing.T) {
	assert.Equal(t, []Operation{"connect", "disconnect", "create", "read", "update", "delete"}, Operations)
}
