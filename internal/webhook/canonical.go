package webhook

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Canonicalize serializes v as JSON with keys sorted and compact
// separators, mirroring `json.dumps(payload, sort_keys=True,
// separators=(",", ":"))` — the exact byte shape the signature is
// computed over, so retries of the same attempt set are byte-identical.
func Canonicalize(v interface{}) ([]byte, error) {
	// encoding/json already sorts map keys; marshal once to normalize
	// the value into a generic tree, then re-encode with a deterministic
	// walk so struct field order (which json.Marshal does NOT reorder)
	// doesn't leak through when v is a struct rather than a map.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
