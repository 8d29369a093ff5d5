package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/fixturecast/pkg/fault"
)

// Paging is the envelope pagination block.
type Paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Envelope is the common upstream response wrapper.
type Envelope struct {
	Get        string          `json:"get"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Errors     APIErrors       `json:"errors"`
	Results    int             `json:"results"`
	Paging     Paging          `json:"paging"`
	Response   json.RawMessage `json:"response"`
}

// Empty reports whether the envelope carries no items.
func (e Envelope) Empty() bool {
	r := bytes.TrimSpace(e.Response)
	return len(r) == 0 || bytes.Equal(r, []byte("[]")) || bytes.Equal(r, []byte("null"))
}

// Decode unmarshals the response payload into v.
func (e Envelope) Decode(v any) error {
	if e.Empty() {
		return nil
	}
	if err := json.Unmarshal(e.Response, v); err != nil {
		return fault.New(fault.Malformed, "decode "+e.Get, err)
	}
	return nil
}

func emptyEnvelope(key CacheKey) Envelope {
	return Envelope{
		Get:        key.Path,
		Parameters: parametersOf(key),
		Results:    0,
		Paging:     Paging{Current: 1, Total: 1},
		Response:   json.RawMessage("[]"),
	}
}

func parametersOf(key CacheKey) json.RawMessage {
	params := map[string]string{}
	for k, v := range key.Values() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	b, _ := json.Marshal(params)
	return b
}

// APIError is one entry of the envelope errors block. Key is empty when the
// upstream sent a bare string.
type APIError struct {
	Key     string
	Message string
}

// APIErrors normalizes the errors block, which arrives either as a keyed
// object ({"requests": "..."}) or as an array of strings.
type APIErrors []APIError

// UnmarshalJSON accepts an object, an array or a single string.
func (e *APIErrors) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = nil
		return nil
	}

	var out APIErrors
	switch b[0] {
	case '{':
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		out = appendKeyed(out, m)
	case '[':
		var arr []any
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		for _, item := range arr {
			switch v := item.(type) {
			case string:
				out = append(out, APIError{Message: v})
			case map[string]any:
				out = appendKeyed(out, v)
			default:
				out = append(out, APIError{Message: fmt.Sprint(v)})
			}
		}
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != "" {
			out = append(out, APIError{Message: s})
		}
	default:
		return fmt.Errorf("unexpected errors block %q", string(b))
	}
	*e = out
	return nil
}

func appendKeyed(out APIErrors, m map[string]any) APIErrors {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, APIError{Key: k, Message: fmt.Sprint(m[k])})
	}
	return out
}

// MarshalJSON writes a keyed object when every entry has a key, else an array.
func (e APIErrors) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte("[]"), nil
	}
	keyed := true
	for _, it := range e {
		if it.Key == "" {
			keyed = false
			break
		}
	}
	if keyed {
		m := make(map[string]string, len(e))
		for _, it := range e {
			m[it.Key] = it.Message
		}
		return json.Marshal(m)
	}
	msgs := make([]string, len(e))
	for i, it := range e {
		msgs[i] = it.Message
	}
	return json.Marshal(msgs)
}

func (e APIErrors) Error() string {
	parts := make([]string, len(e))
	for i, it := range e {
		if it.Key != "" {
			parts[i] = it.Key + ": " + it.Message
		} else {
			parts[i] = it.Message
		}
	}
	return strings.Join(parts, "; ")
}

// Kind classifies the block. Rate limiting wins over auth, auth over the rest.
func (e APIErrors) Kind() fault.Kind {
	kind := fault.Unknown
	for _, it := range e {
		k := classifyAPIError(it)
		if kind == fault.Unknown || rank(k) < rank(kind) {
			kind = k
		}
	}
	return kind
}

func rank(k fault.Kind) int {
	switch k {
	case fault.RateLimited:
		return 0
	case fault.Auth:
		return 1
	default:
		return 2
	}
}

var (
	rateLimitKeys = map[string]bool{"requests": true, "ratelimit": true, "plan": true}
	authKeys      = map[string]bool{"token": true, "access": true, "key": true}

	rateLimitWords = []string{"request limit", "rate limit", "ratelimit", "too many requests", "requests per", "plan", "quota"}
	authWords      = []string{"token", "api key", "apikey", "access", "unauthorized", "forbidden"}
)

// classifyAPIError prefers the structural key; bare strings are matched once
// here so the rest of the client only sees a tagged fault.Kind.
func classifyAPIError(it APIError) fault.Kind {
	key := strings.ToLower(it.Key)
	switch {
	case rateLimitKeys[key]:
		return fault.RateLimited
	case authKeys[key]:
		return fault.Auth
	case key != "":
		return fault.Permanent
	}

	msg := strings.ToLower(it.Message)
	for _, w := range rateLimitWords {
		if strings.Contains(msg, w) {
			return fault.RateLimited
		}
	}
	for _, w := range authWords {
		if strings.Contains(msg, w) {
			return fault.Auth
		}
	}
	return fault.Permanent
}

// parseEnvelope decodes a body into an envelope and turns an errors block
// into a classified fault.
func parseEnvelope(op string, status int, body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, &fault.Error{Kind: fault.Malformed, Op: op, Status: status, Err: err}
	}
	if len(env.Errors) > 0 {
		return env, &fault.Error{Kind: env.Errors.Kind(), Op: op, Status: status, Err: env.Errors}
	}
	if env.Response == nil {
		return env, &fault.Error{Kind: fault.Malformed, Op: op, Status: status, Err: fmt.Errorf("envelope has no response field")}
	}
	return env, nil
}
