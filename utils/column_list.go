package utils

import "reflect"

// ColumnList returns the list of "db" tagged column names of a row struct,
// in declaration order. Panics on a non-struct type parameter.
func ColumnList[T any](prefix ...string) []string {
	var value T
	t := reflect.TypeOf(value)
	if t.Kind() != reflect.Struct {
		panic("ColumnList: type parameter must be a struct")
	}

	var p string
	if len(prefix) > 0 {
		p = prefix[0] + "."
	}

	columns := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		columns = append(columns, p+tag)
	}
	return columns
}
