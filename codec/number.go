// Package codec converts between Go values and the MISP wire encodings.
//
// MISP does not use plain JSON scalars for most of its fields. Integers are
// sent as JSON strings holding their decimal form ("number-in-string"),
// points in time are number-in-string Unix seconds, and calendar dates are
// plain "YYYY-MM-DD" strings. Every decoder in this package fails with a
// *MalformedValueError instead of substituting a default.
package codec

import (
	"encoding/json"
	"errors"
	"strconv"
)

// Integer is the set of integer types the number-in-string codec handles.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// EncodeNumber renders v as a JSON string holding its decimal form.
func EncodeNumber[T Integer](v T) []byte {
	var s string
	if isSigned[T]() {
		s = strconv.FormatInt(int64(v), 10)
	} else {
		s = strconv.FormatUint(uint64(v), 10)
	}
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	out = append(out, s...)
	return append(out, '"')
}

// DecodeNumber parses a number-in-string JSON value into T. The value must
// be a JSON string and its content a base-10 integer that fits T.
func DecodeNumber[T Integer](data []byte) (T, error) {
	expected := "integer in string (" + typeName[T]() + ")"
	var s string
	if err := json.Unmarshal(data, &s); err != nil || !isJSONString(data) {
		return 0, &MalformedValueError{Text: string(data), Expected: expected, Err: err}
	}
	return ParseNumber[T](s, expected)
}

// ErrNonCanonical reports decimal text that parses but would not re-encode
// to the same text: a "+" sign, leading zeros or "-0".
var ErrNonCanonical = errors.New("non-canonical decimal")

// ParseNumber parses the decimal text s into T. Only the canonical form
// produced by EncodeNumber is accepted. expected names the shape in the
// returned error.
func ParseNumber[T Integer](s, expected string) (T, error) {
	bits := bitSize[T]()
	var (
		v         T
		canonical string
	)
	if isSigned[T]() {
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return 0, &MalformedValueError{Text: strconv.Quote(s), Expected: expected, Err: err}
		}
		v, canonical = T(n), strconv.FormatInt(n, 10)
	} else {
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return 0, &MalformedValueError{Text: strconv.Quote(s), Expected: expected, Err: err}
		}
		v, canonical = T(n), strconv.FormatUint(n, 10)
	}
	if canonical != s {
		return 0, &MalformedValueError{Text: strconv.Quote(s), Expected: expected, Err: ErrNonCanonical}
	}
	return v, nil
}

func isJSONString(data []byte) bool {
	return len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"'
}

// isSigned reports whether T can hold negative values.
func isSigned[T Integer]() bool {
	var zero T
	return zero-1 < zero
}

// bitSize returns the width of T in bits.
func bitSize[T Integer]() int {
	var v T = 1
	bits := 0
	for v != 0 {
		v <<= 1
		bits++
	}
	return bits
}

func typeName[T Integer]() string {
	if isSigned[T]() {
		return "int" + strconv.Itoa(bitSize[T]())
	}
	return "uint" + strconv.Itoa(bitSize[T]())
}

// Uint64 is a uint64 carried on the wire as a number-in-string.
type Uint64 uint64

func (n Uint64) MarshalJSON() ([]byte, error) { return EncodeNumber(n), nil }

func (n *Uint64) UnmarshalJSON(data []byte) error {
	v, err := DecodeNumber[Uint64](data)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// Uint16 is a uint16 carried on the wire as a number-in-string.
type Uint16 uint16

func (n Uint16) MarshalJSON() ([]byte, error) { return EncodeNumber(n), nil }

func (n *Uint16) UnmarshalJSON(data []byte) error {
	v, err := DecodeNumber[Uint16](data)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// Int64 is an int64 carried on the wire as a number-in-string.
type Int64 int64

func (n Int64) MarshalJSON() ([]byte, error) { return EncodeNumber(n), nil }

func (n *Int64) UnmarshalJSON(data []byte) error {
	v, err := DecodeNumber[Int64](data)
	if err != nil {
		return err
	}
	*n = v
	return nil
}
