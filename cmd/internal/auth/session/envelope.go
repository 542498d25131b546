package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// envelope is the server's response wrapper:
//
//	{"status":"success","message":"...","data":{...}}
//	{"status":"error","message":"...","code":"...","errors":{...}}
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Errors    json.RawMessage `json:"errors"`
}

// reserved keys are never treated as field names in an unwrapped error body.
var reserved = map[string]bool{
	"status": true, "message": true, "code": true, "request_id": true,
	"detail": true, "error": true, "errors": true, "data": true, "meta": true, "wait": true,
}

func parseEnvelope(body []byte) (envelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Status == "" {
		return envelope{}, false
	}
	return env, true
}

// decodeData decodes the data member of an enveloped body, or the whole body otherwise.
func decodeData(body []byte, v any) error {
	if env, ok := parseEnvelope(body); ok {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// envelopeMessage returns the human message of a success envelope.
func envelopeMessage(body []byte) string {
	if env, ok := parseEnvelope(body); ok {
		return env.Message
	}
	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}

// errorFromResponse normalizes an error response.
func errorFromResponse(status int, header http.Header, body []byte, requestID string) *APIError {
	ae := &APIError{Status: status, RequestID: requestID}

	var fieldsRaw map[string]json.RawMessage
	if env, ok := parseEnvelope(body); ok {
		ae.Code = env.Code
		ae.Message = env.Message
		if env.RequestID != "" {
			ae.RequestID = env.RequestID
		}
		if len(env.Errors) > 0 {
			_ = json.Unmarshal(env.Errors, &fieldsRaw)
		}
	} else {
		_ = json.Unmarshal(body, &fieldsRaw)
		for _, k := range []string{"detail", "message", "error"} {
			if raw, ok := fieldsRaw[k]; ok {
				var s string
				if json.Unmarshal(raw, &s) == nil && ae.Message == "" {
					ae.Message = s
				}
			}
		}
		if raw, ok := fieldsRaw["code"]; ok {
			_ = json.Unmarshal(raw, &ae.Code)
		}
	}

	for k, raw := range fieldsRaw {
		if k == "wait" {
			ae.RetryAfter = parseWait(raw)
			continue
		}
		if k == "detail" || k == "non_field_errors" {
			if msgs := stringList(raw); len(msgs) > 0 && ae.Message == "" {
				ae.Message = msgs[0]
			}
			if k == "detail" {
				continue
			}
		}
		if reserved[k] {
			continue
		}
		if msgs := stringList(raw); len(msgs) > 0 {
			if ae.Fields == nil {
				ae.Fields = map[string][]string{}
			}
			ae.Fields[k] = msgs
		}
	}

	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			ae.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	if ae.Code == "" {
		ae.Code = codeForStatus(status, len(ae.Fields) > 0)
	}
	return ae
}

// stringList accepts "msg", ["msg", ...] or any other JSON value (rendered as text).
func stringList(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return []string{trimmed}
}

func parseWait(raw json.RawMessage) time.Duration {
	var f float64
	if json.Unmarshal(raw, &f) == nil && f > 0 && f < math.MaxInt32 {
		return time.Duration(f * float64(time.Second))
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && n > 0 && n < math.MaxInt32 {
			return time.Duration(n * float64(time.Second))
		}
	}
	return 0
}
