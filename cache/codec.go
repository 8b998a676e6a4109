package cache

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// BlobPrefix marks values stored in the msgpack blob format. 0xc1 is the one
// byte msgpack never emits, so the prefix cannot be mistaken for a bare payload.
const BlobPrefix = "\x00\xc1"

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// Codec converts native values to backend-safe strings and back.
//
// Integers are stored as decimal text and plain strings as themselves so
// simple values stay readable with redis-cli. Everything else, including nil,
// booleans, floats, composite values, and strings that look like an integer or
// start with BlobPrefix, is stored as BlobPrefix followed by a msgpack payload.
type Codec struct{}

// Encode returns the backend representation of v.
func (Codec) Encode(v any) (string, error) {
	if v != nil {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return strconv.FormatInt(rv.Int(), 10), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return strconv.FormatUint(rv.Uint(), 10), nil
		case reflect.String:
			if s := rv.String(); !looksEncoded(s) {
				return s, nil
			}
		}
	}
	return encodeBlob(v)
}

// Decode reverses Encode without type information: blobs decode to loose
// msgpack values (int64, float64, string, []any, map[string]any), integer
// text decodes to int64 (uint64 past the int64 range), anything else is
// returned as the raw string. A malformed blob is returned as the raw string.
func (Codec) Decode(s string) any {
	if strings.HasPrefix(s, BlobPrefix) {
		var out any
		if err := decodeBlob(s, &out); err != nil {
			return s
		}
		return out
	}
	if integerPattern.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	}
	return s
}

// DecodeInto decodes s into dst, which must be a non-nil pointer. Unlike
// Decode, integer text decoded into a string destination stays a string.
func (c Codec) DecodeInto(s string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: %T is not a non-nil pointer", ErrDecodeTarget, dst)
	}

	if strings.HasPrefix(s, BlobPrefix) {
		return decodeBlob(s, dst)
	}

	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.String:
		elem.SetString(s)
		return nil
	case reflect.Interface:
		decoded := reflect.ValueOf(c.Decode(s))
		if !decoded.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("%w: cannot assign %s to %s", ErrDecodeTarget, decoded.Type(), elem.Type())
		}
		elem.Set(decoded)
		return nil
	}

	if !integerPattern.MatchString(s) {
		return fmt.Errorf("%w: %q cannot be stored in %s", ErrDecodeTarget, s, elem.Type())
	}

	switch elem.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || elem.OverflowInt(n) {
			return fmt.Errorf("%w: %q overflows %s", ErrDecodeTarget, s, elem.Type())
		}
		elem.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || elem.OverflowUint(n) {
			return fmt.Errorf("%w: %q overflows %s", ErrDecodeTarget, s, elem.Type())
		}
		elem.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrDecodeTarget, s)
		}
		elem.SetFloat(n)
	default:
		return fmt.Errorf("%w: integer text cannot be stored in %s", ErrDecodeTarget, elem.Type())
	}
	return nil
}

// IsBlob reports whether s carries the blob prefix.
func IsBlob(s string) bool {
	return strings.HasPrefix(s, BlobPrefix)
}

func looksEncoded(s string) bool {
	return integerPattern.MatchString(s) || strings.HasPrefix(s, BlobPrefix)
}

func encodeBlob(v any) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(BlobPrefix)

	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return buf.String(), nil
}

func decodeBlob(s string, dst any) error {
	dec := msgpack.NewDecoder(strings.NewReader(strings.TrimPrefix(s, BlobPrefix)))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	return nil
}
