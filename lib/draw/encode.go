package draw

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Deck is the document handed to a verification backend.
type Deck struct {
	Name       string                 `json:"name"`
	Layers     []string               `json:"layers"`
	Primitives []Primitive            `json:"primitives"`
	Masters    map[string][]Primitive `json:"masters,omitempty"`
}

// Encode writes prims as indented JSON.
func Encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode primitives")
}

// Decode reads a deck written by Encode.
func Decode(r io.Reader) (*Deck, error) {
	deck := &Deck{}
	if err := json.NewDecoder(r).Decode(deck); err != nil {
		return nil, errors.Wrap(err, "decode deck")
	}
	return deck, nil
}

// Digest identifies a primitive list; equal lists give equal digests.
func Digest(prims []Primitive) string {
	data, err := json.Marshal(prims)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
