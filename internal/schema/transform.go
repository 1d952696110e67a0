package schema

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// eachRecord applies fn to every map in doc[key]. A missing key is an empty list.
func eachRecord(doc domain.Document, key string, fn func(i int, rec map[string]any) error) error {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%q must be a list, got %T", key, raw)
	}
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%s[%d] must be an object, got %T", key, i, item)
		}
		if err := fn(i, rec); err != nil {
			return fmt.Errorf("%s[%d]: %w", key, i, err)
		}
	}
	return nil
}

// renameField moves rec[from] to rec[to], refusing to clobber an existing value.
func renameField(rec map[string]any, from, to string) error {
	v, ok := rec[from]
	if !ok {
		return nil
	}
	if _, exists := rec[to]; exists {
		return fmt.Errorf("both %q and %q are set", from, to)
	}
	delete(rec, from)
	rec[to] = v
	return nil
}

// splitList turns "a,b,c" into []any{"a","b","c"}; "" becomes an empty list.
func splitList(v any) ([]any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected a comma separated string, got %T", v)
	}
	if s == "" {
		return []any{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

// joinList is the inverse of splitList.
func joinList(v any) (string, error) {
	list, ok := v.([]any)
	if !ok {
		return "", fmt.Errorf("expected a list, got %T", v)
	}
	parts := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return "", fmt.Errorf("item %d must be a string, got %T", i, item)
		}
		if strings.Contains(s, ",") {
			return "", fmt.Errorf("item %q contains a comma", s)
		}
		parts[i] = s
	}
	return strings.Join(parts, ","), nil
}

// renameKey is a document-level renameField.
func renameKey(from, to string) domain.Transform {
	return func(doc domain.Document) (domain.Document, error) {
		if err := renameField(doc, from, to); err != nil {
			return nil, err
		}
		return doc, nil
	}
}
