package decode

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// Items returns the elements of doc's "items" array. A document without
// "items" is itself the item list: an array yields its elements, an
// object yields itself.
func Items(doc []byte) []gjson.Result {
	root := gjson.ParseBytes(doc)
	if items := root.Get("items"); items.Exists() {
		return items.Array()
	}
	if root.IsArray() {
		return root.Array()
	}
	if root.IsObject() {
		return []gjson.Result{root}
	}
	return nil
}

// Flatten writes v into rec with nested object keys joined by dots.
// Arrays are kept as raw JSON text.
func Flatten(rec *model.Record, prefix string, v gjson.Result) {
	if !v.IsObject() {
		rec.Set(prefix, Value(v))
		return
	}
	v.ForEach(func(k, child gjson.Result) bool {
		key := k.String()
		if prefix != "" {
			key = prefix + "." + key
		}
		Flatten(rec, key, child)
		return true
	})
}

// Shallow writes the top-level fields of obj into rec. Nested values are
// kept as raw JSON text.
func Shallow(rec *model.Record, obj gjson.Result, skip ...string) {
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		for _, s := range skip {
			if s == key {
				return true
			}
		}
		rec.Set(key, Value(v))
		return true
	})
}

// Value converts a JSON scalar to its Go value. Objects and arrays come
// back as their raw text.
func Value(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False, gjson.True:
		return v.Bool()
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			return v.Int()
		}
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}
