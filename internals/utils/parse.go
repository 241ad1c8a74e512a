package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// ParseMapKey extracts a key from an untyped config map into out,
// converting through JSON so yaml-decoded scalars coerce to the expected
// type.
func ParseMapKey[T any](object map[string]any, key string, out *T) error {
	field, exists := object[key]
	if !exists {
		return fmt.Errorf("key %s doesn't exist in map", key)
	}

	bytes, err := json.Marshal(field)
	if err != nil {
		return err
	}

	var temp T
	if err := json.Unmarshal(bytes, &temp); err != nil {
		return fmt.Errorf("type for %s mismatch %s", key, reflect.TypeOf(field).String())
	}
	*out = temp
	return nil
}
