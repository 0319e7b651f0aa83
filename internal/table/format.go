package table

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnsupportedFormat is returned for keys or format names that have no codec.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Format names an on-store table encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a configured format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(name, "."))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// FormatFromKey derives the encoding from a key's extension.
func FormatFromKey(key string) (Format, error) {
	ext := path.Ext(key)
	if ext == "" {
		return "", fmt.Errorf("%w: key %q has no extension", ErrUnsupportedFormat, key)
	}
	return ParseFormat(ext)
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Encode serializes t in the given format.
func Encode(f Format, t *Table) ([]byte, error) {
	switch f {
	case FormatCSV:
		return EncodeCSV(t)
	case FormatParquet:
		return EncodeParquet(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// Decode parses data in the given format.
func Decode(f Format, data []byte) (*Table, error) {
	switch f {
	case FormatCSV:
		return DecodeCSV(data)
	case FormatParquet:
		return DecodeParquet(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// EncodeKey serializes t using the format implied by key.
func EncodeKey(key string, t *Table) ([]byte, error) {
	f, err := FormatFromKey(key)
	if err != nil {
		return nil, err
	}
	return Encode(f, t)
}

// DecodeKey parses data using the format implied by key.
func DecodeKey(key string, data []byte) (*Table, error) {
	f, err := FormatFromKey(key)
	if err != nil {
		return nil, err
	}
	return Decode(f, data)
}
