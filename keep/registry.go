package keep

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Factory creates a Keep from a configuration map.
type Factory func(context.Context, map[string]interface{}) (Keep, error)

var registry = make(map[string]Factory)

// Register makes a Keep type available to Create under the given key.
// Backend packages call it from init.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create creates a Keep of the registered type key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (Keep, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// Nested creates the Keep described by conf["nested"],
// for wrapper types like lru and logging.
func Nested(ctx context.Context, conf map[string]interface{}) (Keep, error) {
	nested, ok := conf["nested"].(map[string]interface{})
	if !ok {
		return nil, errors.New(`missing "nested" parameter`)
	}
	nestedType, ok := nested["type"].(string)
	if !ok {
		return nil, errors.New(`"nested" parameter missing "type"`)
	}
	k, err := Create(ctx, nestedType, nested)
	return k, errors.Wrap(err, "creating nested keep")
}

// Int reads an integer-valued configuration parameter.
// Configuration decoded from JSON holds numbers as float64 or json.Number.
func Int(conf map[string]interface{}, key string) (int, bool, error) {
	v, ok := conf[key]
	if !ok {
		return 0, false, nil
	}
	switch v := v.(type) {
	case int:
		return v, true, nil
	case float64:
		return int(v), true, nil
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		return int(n), true, errors.Wrapf(err, "parsing %q", key)
	}
	return 0, true, fmt.Errorf("parameter %q has type %T, want number", key, v)
}
