package graph

import (
	"time"

	dom "github.com/birlikkoshan/todohub/internal/domain"
)

// nilOnError drops the zero value of a failed service call so the field
// resolves to null next to the error.
func nilOnError[T any](v T, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func inputArg(args map[string]interface{}, name string) map[string]interface{} {
	in, _ := args[name].(map[string]interface{})
	return in
}

func stringField(in map[string]interface{}, key string) string {
	s, _ := in[key].(string)
	return s
}

func optString(in map[string]interface{}, key string) *string {
	s, ok := in[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func optBool(in map[string]interface{}, key string) *bool {
	b, ok := in[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func optTime(in map[string]interface{}, key string) *time.Time {
	switch v := in[key].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	}
	return nil
}

func optPriority(in map[string]interface{}, key string) *dom.Priority {
	p, ok := in[key].(dom.Priority)
	if !ok {
		return nil
	}
	return &p
}

// stringList returns nil when key is absent so callers can tell "leave as
// is" from an empty list.
func stringList(in map[string]interface{}, key string) []string {
	raw, ok := in[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
