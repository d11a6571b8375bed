package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConvertValue coerces a parsed argument value to the JSON-schema type a
// remote tool declares. Types map string|integer|number|boolean to
// (string, int64, float64, bool); unknown types pass through as strings.
// Values that cannot be coerced are returned unchanged so the remote
// server produces the authoritative error.
func ConvertValue(value any, schemaType string) any {
	switch schemaType {
	case "string":
		return stringify(value)
	case "integer":
		return toInt64(value)
	case "number":
		return toFloat64(value)
	case "boolean":
		return toBool(value)
	default:
		return stringify(value)
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool, int64, float64:
		return fmt.Sprint(v)
	default:
		// Arrays and maps serialize as JSON
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func toInt64(value any) any {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return value
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
		return value
	default:
		return value
	}
}

func toFloat64(value any) any {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return value
	default:
		return value
	}
}

func toBool(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true
		case "false":
			return false
		}
		return value
	default:
		return value
	}
}
