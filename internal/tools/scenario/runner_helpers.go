package scenario

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const floatTolerance = 1e-9

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

func hasArg(args map[string]any, key string) bool {
	value, ok := args[key]
	return ok && value != nil
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func (r *Runner) requireString(args map[string]any, key string) (string, error) {
	value := strings.TrimSpace(optionalString(args, key, ""))
	if value == "" {
		return "", r.failf("%s is required", key)
	}
	return value, nil
}

func (r *Runner) requireNumber(args map[string]any, key string) (float64, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return 0, r.failf("%s is required", key)
	}
	number, ok := value.(float64)
	if !ok {
		return 0, r.failf("%s must be a number, got %T", key, value)
	}
	return number, nil
}

func (r *Runner) optionalNumber(args map[string]any, key string, fallback float64) (float64, error) {
	if !hasArg(args, key) {
		return fallback, nil
	}
	return r.requireNumber(args, key)
}

func (r *Runner) optionalBool(args map[string]any, key string, fallback bool) (bool, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return fallback, nil
	}
	flag, ok := value.(bool)
	if !ok {
		return false, r.failf("%s must be a boolean, got %T", key, value)
	}
	return flag, nil
}

func (r *Runner) optionalMap(args map[string]any, key string) (map[string]any, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return nil, nil
	}
	table, ok := value.(map[string]any)
	if !ok {
		return nil, r.failf("%s must be a table, got %T", key, value)
	}
	return table, nil
}

// optionalList accepts a Lua sequence. An empty Lua table converts to an
// empty map, which is read as an empty list.
func (r *Runner) optionalList(args map[string]any, key string) ([]any, bool, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return nil, false, nil
	}
	switch typed := value.(type) {
	case []any:
		return typed, true, nil
	case map[string]any:
		if len(typed) == 0 {
			return []any{}, true, nil
		}
	}
	return nil, false, r.failf("%s must be a list, got %T", key, value)
}

func (r *Runner) optionalStrings(args map[string]any, key string) ([]string, bool, error) {
	items, ok, err := r.optionalList(args, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, optionalString(map[string]any{"v": item}, "v", ""))
	}
	return out, true, nil
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}

func sameStringSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
