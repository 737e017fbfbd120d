// Package discprobe inspects a buffered JSON object without binding it to a
// concrete Go type. Both engine adapters use it on the polymorphic read path
// to extract the discriminator value, and the jsoniter adapter uses it to
// enforce required members. The probe is backed by goccy/go-json for its fast
// partial decode into raw members.
package discprobe

import (
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Object decodes the top-level members of a JSON object into raw fragments.
// A non-object value is an error.
func Object(raw []byte) (map[string]gojson.RawMessage, error) {
	var members map[string]gojson.RawMessage
	if err := gojson.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return members, nil
}

// Field extracts one member's raw value from a buffered JSON object.
func Field(raw []byte, name string) (gojson.RawMessage, bool, error) {
	members, err := Object(raw)
	if err != nil {
		return nil, false, err
	}
	v, ok := members[name]
	return v, ok, nil
}

// ScalarKey normalizes a raw scalar fragment into the discriminator key form
// shared with jsonfig.DiscriminatorKey: the unquoted string, or the decimal
// rendering of an integral number.
func ScalarKey(raw gojson.RawMessage) (string, error) {
	var s string
	if err := gojson.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n gojson.Number
	if err := gojson.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return "", fmt.Errorf("discriminator value %s is not an integer", n)
	}
	return "", fmt.Errorf("discriminator value %s is not a string or integer", string(raw))
}

// MissingKeys returns the subset of want that is absent from the buffered
// object's member set.
func MissingKeys(raw []byte, want []string) ([]string, error) {
	members, err := Object(raw)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range want {
		if _, ok := members[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
