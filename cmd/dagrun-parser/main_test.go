package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wseaton/dagrun/parser"
	"github.com/wseaton/dagrun/treefmt"
)

func TestReportText(t *testing.T) {
	var buf bytes.Buffer
	tree := parser.ParseString("build:\n    make\n")
	require.NoError(t, report(&buf, "dagrunfile", tree, "text"))
	assert.Equal(t, "dagrunfile: ok (1 tasks)\n", buf.String())

	buf.Reset()
	tree = parser.ParseString("t: svc:api\n")
	require.NoError(t, report(&buf, "dagrunfile", tree, "text"))
	assert.Contains(t, buf.String(), "dagrunfile:1:")
	assert.Contains(t, buf.String(), "syntax error")
}

func TestReportJSON(t *testing.T) {
	var buf bytes.Buffer
	tree := parser.ParseString("@orphan x\n")
	require.NoError(t, report(&buf, "f", tree, "json"))

	var out diagnosticsJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "f", out.File)
	assert.Equal(t, 0, out.Tasks)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 1, out.Errors[0].Line)
	assert.Equal(t, "syntax error", out.Errors[0].Kind)
}

func TestReportCBOR(t *testing.T) {
	var buf bytes.Buffer
	tree := parser.ParseString("build:\n    make\n")
	require.NoError(t, report(&buf, "f", tree, "cbor"))

	decoded, _, err := treefmt.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.NotNil(t, decoded.Task("build"))
}

func TestReportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := report(&buf, "f", parser.ParseString(""), "yaml")
	require.Error(t, err)
}
