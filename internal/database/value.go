package database

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueType is the storage class of a value.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeInteger
	TypeFloat
	TypeText
	TypeBlob
)

func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	case TypeBlob:
		return "blob"
	default:
		return "null"
	}
}

// Value is a typed column or parameter value. Only the field matching Type
// is meaningful.
type Value struct {
	Type    ValueType
	Integer int64
	Float   float64
	Text    string
	Blob    []byte
}

func Null() Value { return Value{Type: TypeNull} }

func Integer(v int64) Value { return Value{Type: TypeInteger, Integer: v} }

func Float(v float64) Value { return Value{Type: TypeFloat, Float: v} }

func Text(v string) Value { return Value{Type: TypeText, Text: v} }

func Blob(v []byte) Value { return Value{Type: TypeBlob, Blob: v} }

func (v Value) IsNull() bool { return v.Type == TypeNull }

// MarshalJSON renders the value as its natural JSON form. Blobs are rendered
// as a hex literal string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == TypeBlob {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.Any())
}

// Any returns the value as a driver argument.
func (v Value) Any() any {
	switch v.Type {
	case TypeInteger:
		return v.Integer
	case TypeFloat:
		return v.Float
	case TypeText:
		return v.Text
	case TypeBlob:
		return v.Blob
	default:
		return nil
	}
}

// String renders the value for display. Blobs are shown as hex.
func (v Value) String() string {
	switch v.Type {
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeText:
		return v.Text
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	default:
		return "NULL"
	}
}

// AsInt64 converts the value the way the engine does for integer columns.
func (v Value) AsInt64() int64 {
	switch v.Type {
	case TypeInteger:
		return v.Integer
	case TypeFloat:
		return int64(v.Float)
	case TypeText:
		return leadingNumber(v.Text).AsInt64()
	case TypeBlob:
		return leadingNumber(string(v.Blob)).AsInt64()
	default:
		return 0
	}
}

// AsFloat converts the value the way the engine does for real columns.
func (v Value) AsFloat() float64 {
	switch v.Type {
	case TypeInteger:
		return float64(v.Integer)
	case TypeFloat:
		return v.Float
	case TypeText:
		return leadingNumber(v.Text).AsFloat()
	case TypeBlob:
		return leadingNumber(string(v.Blob)).AsFloat()
	default:
		return 0
	}
}

// AsText converts the value to text. NULL becomes the empty string.
func (v Value) AsText() string {
	switch v.Type {
	case TypeNull:
		return ""
	case TypeBlob:
		return string(v.Blob)
	default:
		return v.String()
	}
}

// AsBlob converts the value to bytes. NULL becomes nil.
func (v Value) AsBlob() []byte {
	switch v.Type {
	case TypeNull:
		return nil
	case TypeBlob:
		return v.Blob
	default:
		return []byte(v.AsText())
	}
}

// leadingNumber parses the longest numeric prefix of s, as the engine does
// when it casts text. Text with no numeric prefix is zero.
func leadingNumber(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsRune("0123456789+-.", rune(s[0])) {
		return Integer(0)
	}
	for end := len(s); end > 0; end-- {
		prefix := s[:end]
		if n, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			return Integer(n)
		}
		if f, err := strconv.ParseFloat(prefix, 64); err == nil {
			return Float(f)
		}
	}
	return Integer(0)
}

// valueOf converts a scanned driver value.
func valueOf(src any) Value {
	switch v := src.(type) {
	case nil:
		return Null()
	case int64:
		return Integer(v)
	case float64:
		return Float(v)
	case bool:
		if v {
			return Integer(1)
		}
		return Integer(0)
	case string:
		return Text(v)
	case []byte:
		return Blob(append([]byte(nil), v...))
	case time.Time:
		return Text(v.Format("2006-01-02 15:04:05.999999999-07:00"))
	default:
		return Text(fmt.Sprint(v))
	}
}
