package treefmt

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wseaton/dagrun/parser"
)

const sample = `# release pipeline
VERSION := ` + "`git describe --tags`" + `
set shell := bash

@timeout 5m
@ssh host=deploy@prod
@upload ./app.tar.gz:/tmp/app.tar.gz
deploy env=prod region="us-east-1": build, service:db
    #!/usr/bin/env bash
    echo rolling out {{env}} to {{region}}

build:
    make all
`

func TestRoundTrip(t *testing.T) {
	tree := parser.ParseString(sample)
	require.Empty(t, tree.Errors)

	data, digest, err := Encode(tree)
	require.NoError(t, err)

	decoded, readDigest, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, digest, readDigest)

	if diff := cmp.Diff(tree, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("decoded tree differs (-orig +decoded):\n%s", diff)
	}
}

func TestRoundTripWithErrors(t *testing.T) {
	tree := parser.ParseString("@lua\nlocal x = 1\n")
	require.NotEmpty(t, tree.Errors)

	data, _, err := Encode(tree)
	require.NoError(t, err)

	decoded, _, err := Decode(data)
	require.NoError(t, err)

	if diff := cmp.Diff(tree, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("decoded tree differs (-orig +decoded):\n%s", diff)
	}
}

// Structurally identical trees must produce byte-identical snapshots; the
// body hash is the tree's identity.
func TestDeterminism(t *testing.T) {
	first, d1, err := Encode(parser.ParseString(sample))
	require.NoError(t, err)
	second, d2, err := Encode(parser.ParseString(sample))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, d1, d2)

	h, err := Hash(parser.ParseString(sample))
	require.NoError(t, err)
	assert.Equal(t, d1, h)
}

func TestHashChangesWithContent(t *testing.T) {
	h1, err := Hash(parser.ParseString("a:\n    run a\n"))
	require.NoError(t, err)
	h2, err := Hash(parser.ParseString("b:\n    run b\n"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestReadRejectsBadMagic(t *testing.T) {
	data, _, err := Encode(parser.ParseString("t:\n    run\n"))
	require.NoError(t, err)

	copy(data[0:4], "NOPE")
	_, _, err = Decode(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	data, _, err := Encode(parser.ParseString("t:\n    run\n"))
	require.NoError(t, err)

	data[4] = 0xFF
	data[5] = 0xFF
	_, _, err = Decode(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestReadRejectsTruncatedBody(t *testing.T) {
	data, _, err := Encode(parser.ParseString("t:\n    run\n"))
	require.NoError(t, err)

	_, _, err = Read(bytes.NewReader(data[:len(data)-5]))
	require.Error(t, err)
}
