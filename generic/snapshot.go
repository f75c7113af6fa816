package generic

import (
	"encoding/json"
	"reflect"
	"strings"
)

// =============================================================================
// SNAPSHOT CODEC - Keep members owned by other modules
// =============================================================================

// Snapshots are shared with collaborators (inventory, HR pages) that keep
// their own collections next to ours in the same blob. Decoding only the
// members we model and re-encoding would drop theirs, so snapshot types
// carry the rest in an Extra map and use these helpers in their
// MarshalJSON/UnmarshalJSON.

// Extra holds top-level snapshot members this module does not model.
type Extra map[string]json.RawMessage

// DecodePreserving decodes data into v (a pointer to a struct without
// custom JSON methods) and returns the members v does not declare.
func DecodePreserving(data []byte, v any) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	known := jsonNames(reflect.TypeOf(v).Elem())
	extra := Extra{}
	for name, raw := range all {
		if !known[strings.ToLower(name)] {
			extra[name] = raw
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// EncodePreserving encodes v and merges extra members back in. Declared
// members win over extra ones with the same name.
func EncodePreserving(v any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for name, raw := range extra {
		if _, ok := all[name]; !ok {
			all[name] = raw
		}
	}
	return json.Marshal(all)
}

func jsonNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names[strings.ToLower(name)] = true
	}
	return names
}
