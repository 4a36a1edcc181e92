// Package results persists simulation result bundles and summarizes them.
package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ugorji/go/codec"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

// Supported encodings
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// ErrUnknownFormat is returned for an encoding other than json or msgpack
var ErrUnknownFormat = errors.New("unknown result format")

var (
	jh codec.JsonHandle
	mh codec.MsgpackHandle
)

func init() {
	jh.Indent = 2
}

func handleFor(format string) (codec.Handle, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &jh, nil
	case FormatMsgpack:
		return &mh, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Extension returns the file extension used for format, including the dot
func Extension(format string) string {
	return "." + strings.ToLower(format)
}

// FormatOf infers the encoding of a result file from its extension
func FormatOf(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, err := handleFor(ext); err != nil {
		return "", err
	}
	return ext, nil
}

// Encode serializes b in the given format
func Encode(format string, b *models.ResultBundle) ([]byte, error) {
	h, err := handleFor(format)
	if err != nil {
		return nil, err
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, h).Encode(b); err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return out, nil
}

// Decode parses a bundle serialized in the given format
func Decode(format string, data []byte) (*models.ResultBundle, error) {
	h, err := handleFor(format)
	if err != nil {
		return nil, err
	}
	var b models.ResultBundle
	if err := codec.NewDecoderBytes(data, h).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return &b, nil
}

// ReadFile loads a result file, picking the format from its extension
func ReadFile(path string) (*models.ResultBundle, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file %s: %w", path, err)
	}
	b, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
