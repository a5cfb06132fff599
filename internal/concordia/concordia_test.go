package concordia

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalObjectAndArray(t *testing.T) {
	root := Object("",
		Field("launch_time", TypeNumber),
		Array("active_triggers", Node{Type: TypeString}),
	)

	data, err := json.Marshal(root)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "object",
		"schema": [
			{"name": "launch_time", "type": "number"},
			{"name": "active_triggers", "type": "array", "schema": {"type": "string"}}
		]
	}`, string(data))
}

func TestEmptyObjectKeepsSchemaArray(t *testing.T) {
	data, err := json.Marshal(Object("responses"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "responses", "type": "object", "schema": []}`, string(data))
}

func TestListSink(t *testing.T) {
	var l List
	var sink Sink = &l
	sink.Append(Field("p1", TypeString))
	sink.Append(Field("p2", TypeNumber))

	require.Len(t, l, 2)
	assert.Equal(t, "p2", l[1].Name)
}

func TestFindAndWrite(t *testing.T) {
	root := Object("", Field("a", TypeBoolean))
	f, ok := root.Find("a")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, f.Type)

	_, ok = root.Find("missing")
	assert.False(t, ok)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, root))
	assert.JSONEq(t, `{"type":"object","schema":[{"name":"a","type":"boolean"}]}`, buf.String())
}

func TestTuple(t *testing.T) {
	data, err := json.Marshal(Tuple("responses", Field("p1", TypeString)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"responses","type":"array","schema":[{"name":"p1","type":"string"}]}`, string(data))

	data, err = json.Marshal(Tuple("responses"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"responses","type":"array","schema":[]}`, string(data))
}
