package restapi

import (
	"geotask/internal/service"
	"geotask/internal/task"
)

// unwrap returns the payload of a {success, data} envelope, or resp itself.
// An envelope with success == false fails with *service.APIError.
func unwrap(resp any) (any, error) {
	m, ok := resp.(map[string]any)
	if !ok {
		return resp, nil
	}
	if failed(m) {
		msg := envelopeMessage(m)
		if msg == "" {
			msg = "API Error"
		}
		return nil, &service.APIError{Message: msg}
	}
	if data, ok := m["data"]; ok && data != nil {
		return data, nil
	}
	return m, nil
}

func failed(m map[string]any) bool {
	s, ok := m["success"].(bool)
	return ok && !s
}

// envelopeMessage picks message, then error.message, then a string error.
func envelopeMessage(m map[string]any) string {
	if s, ok := m["message"].(string); ok && s != "" {
		return s
	}
	switch e := m["error"].(type) {
	case map[string]any:
		if s, ok := e["message"].(string); ok {
			return s
		}
	case string:
		return e
	}
	return ""
}

// pickToken reads data.token, then the configured property, then token, then access_token.
func pickToken(m map[string]any, prop string) string {
	if m == nil {
		return ""
	}
	if data, ok := m["data"].(map[string]any); ok {
		if s, ok := data["token"].(string); ok && s != "" {
			return s
		}
	}
	for _, key := range []string{prop, "token", "access_token"} {
		if key == "" {
			continue
		}
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func asRecord(v any) (task.Record, bool) {
	switch m := v.(type) {
	case map[string]any:
		return task.Record(m), true
	case task.Record:
		return m, true
	}
	return nil, false
}
