package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Property keys understood by the built-in shapes. Other keys are passed
// through as-is where the shape allows it.
const (
	PropPreserveHost           = "preserve_host"
	PropRetries                = "retries"
	PropStripURI               = "strip_uri"
	PropUpstreamConnectTimeout = "upstream_connect_timeout"
	PropUpstreamReadTimeout    = "upstream_read_timeout"
	PropUpstreamSendTimeout    = "upstream_send_timeout"
	PropHTTPSOnly              = "https_only"
	PropHTTPIfTerminated       = "http_if_terminated"
)

var intProperties = []string{
	PropRetries,
	PropUpstreamConnectTimeout,
	PropUpstreamReadTimeout,
	PropUpstreamSendTimeout,
}

var boolProperties = []string{
	PropPreserveHost,
	PropStripURI,
	PropHTTPSOnly,
	PropHTTPIfTerminated,
}

// intProperty returns the integer value of key. ok is false when the key
// is absent.
func intProperty(props map[string]any, key string) (n int, ok bool, err error) {
	v, present := props[key]
	if !present || v == nil {
		return 0, false, nil
	}
	n, err = toInt(v)
	if err != nil {
		return 0, false, &ValidationError{Field: "properties." + key, Message: err.Error()}
	}
	return n, true, nil
}

// boolProperty returns the boolean value of key. ok is false when the key
// is absent.
func boolProperty(props map[string]any, key string) (b bool, ok bool, err error) {
	v, present := props[key]
	if !present || v == nil {
		return false, false, nil
	}
	b, err = toBool(v)
	if err != nil {
		return false, false, &ValidationError{Field: "properties." + key, Message: err.Error()}
	}
	return b, true, nil
}

// typedProperties returns a copy of props with every recognized key
// converted to its canonical Go type.
func typedProperties(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, key := range intProperties {
		n, ok, err := intProperty(props, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = n
		}
	}
	for _, key := range boolProperties {
		b, ok, err := boolProperty(props, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = b
		}
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", n)
		}
		return int(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	// -float64(math.MinInt) is the first value past math.MaxInt.
	if f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, fmt.Errorf("integer %v out of range", f)
	}
	return int(f), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("expected boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

// isScalar reports whether v is an acceptable property value.
func isScalar(v any) bool {
	switch v.(type) {
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
