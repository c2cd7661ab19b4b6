package reqflow

import (
	"net/url"
	"reflect"
	"sort"
	"strings"
)

const fingerprintSeparator = "&"

// Fingerprint derives the identity key of a request from its method, URL and
// the key names of its params, or of its payload when params are absent.
// Values never take part, so requests that differ only in values collide.
func Fingerprint(req *Request) string {
	tokens := []string{strings.ToLower(req.Method), req.URL}

	switch {
	case req.Params != nil:
		tokens = append(tokens, req.Params.Keys()...)
	case req.Data != nil:
		tokens = append(tokens, payloadKeys(req.Data)...)
	}

	return strings.Join(tokens, fingerprintSeparator)
}

// payloadKeys lists the key names of a payload. Ordered containers keep their
// order, Go maps are sorted, and structs use their JSON names in declaration
// order. Opaque payloads have no keys.
func payloadKeys(data any) []string {
	switch d := data.(type) {
	case Fields:
		return d.Keys()
	case *FormData:
		return d.Keys()
	case url.Values:
		return sortedKeys(d)
	case map[string]any:
		return sortedKeys(d)
	case map[string]string:
		return sortedKeys(d)
	case []byte, string:
		return nil
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return keys
	case reflect.Struct:
		return structKeys(v.Type())
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func structKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		keys = append(keys, name)
	}
	return keys
}
