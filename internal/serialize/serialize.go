// Package serialize converts stored documents into their external JSON shape.
package serialize

import (
	"time"

	"chat-api/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Doc renames the internal identifier field to "id" and renders every identifier
// as hex string. Store datetimes become UTC time.Time. Nested documents and arrays
// are converted too. Empty doc is returned unchanged.
func Doc(doc storage.Document) map[string]interface{} {
	if len(doc) == 0 {
		return doc
	}

	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == storage.IDField {
			k = "id"
		}
		out[k] = value(v)
	}
	return out
}

// List applies Doc to each element, the result is never nil
func List(docs []storage.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		out = append(out, Doc(d))
	}
	return out
}

func value(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case storage.Document:
		return Doc(t)
	case primitive.M:
		return Doc(storage.Document(t))
	case map[string]interface{}:
		return Doc(t)
	case primitive.D:
		return Doc(storage.Document(t.Map()))
	case primitive.A:
		return slice(t)
	case []interface{}:
		return slice(t)
	default:
		return v
	}
}

func slice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = value(v)
	}
	return out
}
