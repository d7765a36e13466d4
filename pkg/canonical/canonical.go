// Package canonical provides the deterministic serialization used as hash
// input by the custody ledger and the manifest builder. Two values with the
// same content always encode to the same bytes, regardless of map insertion
// order. The output is valid JSON but is never used for display or storage.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal encodes v as deterministic JSON: object keys are sorted
// lexicographically, array order is preserved. Values that cannot be
// represented as JSON (funcs, channels, cycles) return an error rather than
// being coerced, since a silently altered encoding would hash to something
// callers do not expect.
func Marshal(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encode(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HashHex returns the SHA-256 of the canonical encoding of v as a 64
// character lowercase hex string.
func HashHex(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
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
			if err := encodeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
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
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return encodeScalar(buf, val)
	default:
		// Structs, typed maps and slices round-trip through encoding/json
		// so they reduce to the cases above. UseNumber keeps numeric
		// literals intact instead of forcing them through float64.
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonical: unsupported value: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var decoded interface{}
		if err := dec.Decode(&decoded); err != nil {
			return fmt.Errorf("canonical: decode: %w", err)
		}
		return encode(buf, decoded)
	}
}

func encodeScalar(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("canonical: encode scalar: %w", err)
	}
	// json.Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
