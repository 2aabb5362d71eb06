package models

import (
	"encoding/json"
	"sort"
	"strconv"
)

// FileRef identifies a file uploaded through the console but not yet persisted
// by the school backend. Two refs are the same file only when their IDs match.
type FileRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Key         string `json:"key,omitempty"`
}

// Value is a scalar field value: text (numbers and booleans are kept in their
// canonical string form) or a freshly uploaded file.
type Value struct {
	Text string   `json:"text,omitempty"`
	File *FileRef `json:"file,omitempty"`
}

// Text wraps a string value.
func Text(s string) Value {
	return Value{Text: s}
}

// File wraps an uploaded file reference.
func File(ref FileRef) Value {
	r := ref
	return Value{File: &r}
}

// IsFile reports whether the value holds a file reference.
func (v Value) IsFile() bool {
	return v.File != nil
}

// Equal compares text by value and files by identity. A file never equals text.
func (v Value) Equal(other Value) bool {
	if v.File != nil || other.File != nil {
		return v.File != nil && other.File != nil && v.File.ID == other.File.ID
	}
	return v.Text == other.Text
}

// String returns the text form; files render as their original name.
func (v Value) String() string {
	if v.File != nil {
		return v.File.Name
	}
	return v.Text
}

// DecodeValue converts a decoded JSON scalar into a Value. Absent and null
// values become the empty string.
func DecodeValue(raw interface{}) Value {
	switch val := raw.(type) {
	case nil:
		return Text("")
	case string:
		return Text(val)
	case json.Number:
		return Text(val.String())
	case float64:
		return Text(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		return Text(strconv.Itoa(val))
	case int64:
		return Text(strconv.FormatInt(val, 10))
	case bool:
		return Text(strconv.FormatBool(val))
	case Value:
		return val
	case FileRef:
		return File(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return Text("")
		}
		return Text(string(b))
	}
}

// Fields maps field names to values.
type Fields map[string]Value

// Get returns the value for key, or the empty string when absent.
func (f Fields) Get(key string) Value {
	if f == nil {
		return Text("")
	}
	return f[key]
}

// Clone returns an independent copy, including file references.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v.File != nil {
			ref := *v.File
			v.File = &ref
		}
		out[k] = v
	}
	return out
}

// Keys returns field names sorted alphabetically.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasFile reports whether any field holds a file reference.
func (f Fields) HasFile() bool {
	for _, v := range f {
		if v.File != nil {
			return true
		}
	}
	return false
}

// Strings flattens the fields into text, rendering files by name.
func (f Fields) Strings() map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v.String()
	}
	return out
}

// FieldsFromMap converts a decoded JSON object into Fields.
func FieldsFromMap(raw map[string]interface{}) Fields {
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = DecodeValue(v)
	}
	return out
}
