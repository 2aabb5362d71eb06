package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Entity is the capability the change-set editor needs from any record type:
// its backend id and its editable fields.
type Entity interface {
	RecordID() string
	Fields() Fields
}

// FileFielder is implemented by entities with file-valued fields such as photos.
type FileFielder interface {
	FileFields() []string
}

// Record is an untyped entity as returned by the school backend.
type Record struct {
	ID     string   `json:"id"`
	Values Fields   `json:"values"`
	Files  []string `json:"files,omitempty"`
}

// RecordID implements Entity.
func (r Record) RecordID() string { return r.ID }

// Fields implements Entity.
func (r Record) Fields() Fields { return r.Values.Clone() }

// FileFields implements FileFielder.
func (r Record) FileFields() []string { return append([]string(nil), r.Files...) }

// RecordFromMap builds a record from a decoded backend object. The id is read
// from "id" or "_id" and excluded from the values.
func RecordFromMap(raw map[string]interface{}) Record {
	rec := Record{Values: make(Fields, len(raw))}
	for k, v := range raw {
		switch k {
		case "id", "_id":
			if rec.ID == "" || k == "id" {
				rec.ID = DecodeValue(v).Text
			}
		default:
			rec.Values[k] = DecodeValue(v)
		}
	}
	return rec
}

// fieldsOf reads every exported string field with a json tag, except the id.
func fieldsOf(entity interface{}) Fields {
	val := reflect.Indirect(reflect.ValueOf(entity))
	typ := val.Type()
	out := make(Fields, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := jsonName(field)
		if key == "" || key == "id" || field.Type.Kind() != reflect.String {
			continue
		}
		out[key] = Text(val.Field(i).String())
	}
	return out
}

// FieldKeys lists the editable field names of a typed entity in declaration order.
func FieldKeys(entity interface{}) []string {
	typ := reflect.Indirect(reflect.ValueOf(entity)).Type()
	keys := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := jsonName(field)
		if key == "" || key == "id" || field.Type.Kind() != reflect.String {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Assign populates a typed entity from an id and a set of fields. Unknown keys
// are ignored; file values are assigned by file name.
func Assign(dst Entity, id string, fields Fields) error {
	flat := fields.Strings()
	flat["id"] = id
	payload, err := json.Marshal(flat)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	return nil
}

func jsonName(field reflect.StructField) string {
	if field.PkgPath != "" {
		return ""
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return ""
	}
	return name
}
