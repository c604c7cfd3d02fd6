package feeders

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GoCodeAlone/modlife"
)

// flatten turns a decoded document into environment variables. Nested keys
// are joined with '_' and upper-cased, so {store: {path: x}} becomes
// STORE_PATH=x. Lists of scalars are joined with ','.
func flatten(prefix string, value any, env modlife.EnvVars) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(joinKey(prefix, k), v[k], env); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, item := range v {
			if err := flatten(joinKey(prefix, fmt.Sprint(k)), item, env); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := scalar(item)
			if !ok {
				return wrapUnsupportedValueError(prefix, item)
			}
			parts = append(parts, s)
		}
		env[prefix] = strings.Join(parts, ",")
	case []map[string]any:
		return wrapUnsupportedValueError(prefix, v)
	default:
		s, ok := scalar(v)
		if !ok {
			return wrapUnsupportedValueError(prefix, v)
		}
		if prefix == "" {
			return wrapUnsupportedValueError("<root>", v)
		}
		env[prefix] = s
	}
	return nil
}

func joinKey(prefix, key string) string {
	key = strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func scalar(v any) (string, bool) {
	switch v.(type) {
	case nil:
		return "", true
	case string, bool, int, int64, uint64, float64:
		return fmt.Sprint(v), true
	case fmt.Stringer:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}
