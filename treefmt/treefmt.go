// Package treefmt serializes parse trees to a deterministic binary
// snapshot. Snapshots feed caching and cross-process tooling: two encodes
// of structurally identical trees are byte-identical, so the content hash
// doubles as a tree identity.
//
// Format: MAGIC(4) | VERSION(2, little-endian) | BODY_LEN(8) | BODY, where
// BODY is the canonical CBOR encoding of the tree image.
package treefmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/wseaton/dagrun/parser"
)

const (
	// Magic identifies a dagrun tree snapshot.
	Magic = "DGTR"

	// Version is the snapshot format version. Breaking image changes
	// increment it.
	Version uint16 = 0x0001
)

var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("treefmt: canonical cbor options rejected: %v", err))
	}
}

// Write encodes the tree to w and returns the BLAKE2b-256 hash of the body.
// The preamble is excluded from the hash so a future version bump alone
// does not change tree identity.
func Write(w io.Writer, tree *parser.SourceFile) ([32]byte, error) {
	body, err := encMode.Marshal(imageOf(tree))
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode tree: %w", err)
	}

	digest := blake2b.Sum256(body)

	var preamble [14]byte
	copy(preamble[0:4], Magic)
	binary.LittleEndian.PutUint16(preamble[4:6], Version)
	binary.LittleEndian.PutUint64(preamble[6:14], uint64(len(body)))

	if _, err := w.Write(preamble[:]); err != nil {
		return [32]byte{}, fmt.Errorf("write preamble: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return [32]byte{}, fmt.Errorf("write body: %w", err)
	}
	return digest, nil
}

// Read decodes a snapshot from r and returns the tree and its body hash.
func Read(r io.Reader) (*parser.SourceFile, [32]byte, error) {
	var preamble [14]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read preamble: %w", err)
	}

	if string(preamble[0:4]) != Magic {
		return nil, [32]byte{}, fmt.Errorf("invalid magic: got %q, expected %q", preamble[0:4], Magic)
	}
	version := binary.LittleEndian.Uint16(preamble[4:6])
	if version != Version {
		return nil, [32]byte{}, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}

	bodyLen := binary.LittleEndian.Uint64(preamble[6:14])
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read body: %w", err)
	}

	var img fileImage
	if err := cbor.Unmarshal(body, &img); err != nil {
		return nil, [32]byte{}, fmt.Errorf("decode tree: %w", err)
	}

	return img.tree(), blake2b.Sum256(body), nil
}

// Encode is a convenience wrapper returning the snapshot as a byte slice.
func Encode(tree *parser.SourceFile) ([]byte, [32]byte, error) {
	var buf bytes.Buffer
	digest, err := Write(&buf, tree)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return buf.Bytes(), digest, nil
}

// Decode is a convenience wrapper over Read.
func Decode(data []byte) (*parser.SourceFile, [32]byte, error) {
	return Read(bytes.NewReader(data))
}

// Hash returns the tree's content hash without materializing a snapshot.
func Hash(tree *parser.SourceFile) ([32]byte, error) {
	body, err := encMode.Marshal(imageOf(tree))
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode tree: %w", err)
	}
	return blake2b.Sum256(body), nil
}
