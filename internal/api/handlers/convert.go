package handlers

import (
	"strconv"
	"strings"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// payloadFromJSON flattens a decoded JSON object into the string payload the
// workflow expects. Nested values are refused.
func payloadFromJSON(raw map[string]any) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			return nil, apperrors.ErrInvalidPayloadf(k, "payload values must be strings, numbers or booleans")
		}
	}
	return out, nil
}

// parseStatuses accepts both repeated and comma-separated status parameters.
func parseStatuses(values []string) []domain.Status {
	var out []domain.Status
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, domain.Status(part))
			}
		}
	}
	return out
}
