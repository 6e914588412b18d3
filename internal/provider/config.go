package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// Channel configs arrive as decoded JSON, so numbers are float64 and lists
// are []any. These helpers accept the shapes an administrator may submit.

func cfgString(cfg map[string]any, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func cfgInt(cfg map[string]any, key string, def int) (int, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrChannelConfig, key)
		}
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrChannelConfig, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrChannelConfig, key)
	}
}

// cfgStrings reads a list given either as a JSON array or a comma separated
// string. Empty entries are dropped.
func cfgStrings(cfg map[string]any, key string) []string {
	var raw []string
	switch v := cfg[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if item != nil {
				raw = append(raw, scalarString(item))
			}
		}
	case string:
		raw = strings.Split(v, ",")
	case float64, int, int64:
		raw = []string{scalarString(v)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// scalarString formats JSON numbers without exponents so large ids survive.
func scalarString(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func requireFields(kind domain.ChannelKind, cfg map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if cfgString(cfg, k) == "" && len(cfgStrings(cfg, k)) == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s channel missing %s", domain.ErrChannelConfig, kind, strings.Join(missing, ", "))
	}
	return nil
}

func userIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid user id %q", domain.ErrChannelConfig, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
