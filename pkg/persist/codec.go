// Package persist stores typed state in files through pluggable codecs.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

const (
	jsonExtension = ".json"
	lz4Extension  = ".lz4"
	defaultIndent = "  "
	filePerm      = 0o600
)

// Codec serializes state.
type Codec interface {
	Encode(w io.Writer, state any) error
	Decode(r io.Reader, state any) error
	// Extension is appended to the basename to form the file name.
	Extension() string
}

// JSONCodec encodes state as JSON, indented unless Indent is empty.
type JSONCodec struct {
	Indent string
}

// NewJSONCodec returns an indented JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode writes state as JSON.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode reads JSON into state.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	err := json.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension returns ".json".
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// LZ4Codec wraps another codec in an LZ4 frame.
type LZ4Codec struct {
	Inner Codec
}

// NewLZ4JSONCodec returns compact JSON inside an LZ4 frame.
func NewLZ4JSONCodec() *LZ4Codec {
	return &LZ4Codec{Inner: &JSONCodec{}}
}

// Encode compresses the inner encoding.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	err := c.Inner.Encode(zw, state)
	if err != nil {
		return errors.Join(err, zw.Close())
	}

	closeErr := zw.Close()
	if closeErr != nil {
		return fmt.Errorf("lz4 close: %w", closeErr)
	}

	return nil
}

// Decode decompresses and decodes with the inner codec.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	return c.Inner.Decode(lz4.NewReader(r), state)
}

// Extension returns the inner extension followed by ".lz4".
func (c *LZ4Codec) Extension() string {
	return c.Inner.Extension() + lz4Extension
}

// SaveState writes state to dir/basename+ext. The file is written to a
// temporary name first and renamed, so readers never see a partial file.
func SaveState(dir, basename string, codec Codec, state any) (err error) {
	path := filepath.Join(dir, basename+codec.Extension())

	tmp, err := os.CreateTemp(dir, basename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	encodeErr := codec.Encode(tmp, state)
	closeErr := tmp.Close()

	if encodeErr != nil {
		return fmt.Errorf("encode state: %w", encodeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close state file: %w", closeErr)
	}

	chmodErr := os.Chmod(tmp.Name(), filePerm)
	if chmodErr != nil {
		return fmt.Errorf("chmod state file: %w", chmodErr)
	}

	renameErr := os.Rename(tmp.Name(), path)
	if renameErr != nil {
		return fmt.Errorf("rename state file: %w", renameErr)
	}

	return nil
}

// LoadState reads dir/basename+ext into state, which must be a pointer.
func LoadState(dir, basename string, codec Codec, state any) error {
	file, err := os.Open(filepath.Join(dir, basename+codec.Extension()))
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
