// Package credentials resolves and validates backend-specific credential
// sets. Each field is resolved through a fixed-priority chain: a primary
// environment variable first, then a structured secret payload (a JSON
// document the deployment platform injects through an MLOPS_RUNTIME_PARAM_*
// environment variable). Operators consume only the resolved set and never
// perform resolution themselves.
package credentials

import (
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// source is one step in a resolution chain.
type source struct {
	env  string
	path []string
}

// fromEnv resolves directly from an environment variable.
func fromEnv(name string) source {
	return source{env: name}
}

// fromPayload resolves from a key path inside a JSON secret payload held in
// an environment variable.
func fromPayload(name string, path ...string) source {
	return source{env: name, path: path}
}

// resolveString returns the first non-empty value in the chain.
func resolveString(sources ...source) string {
	for _, s := range sources {
		raw, ok := os.LookupEnv(s.env)
		if !ok || raw == "" {
			continue
		}
		if len(s.path) == 0 {
			return raw
		}
		if v, ok := walkPayload(raw, s.path); ok {
			if str, ok := v.(string); ok && str != "" {
				return str
			}
		}
	}
	return ""
}

// resolveJSON returns the first value in the chain as raw JSON. Plain
// environment values are returned verbatim; payload values are re-marshaled.
func resolveJSON(sources ...source) []byte {
	for _, s := range sources {
		raw, ok := os.LookupEnv(s.env)
		if !ok || raw == "" {
			continue
		}
		if len(s.path) == 0 {
			return []byte(raw)
		}
		if v, ok := walkPayload(raw, s.path); ok && v != nil {
			if data, err := json.Marshal(v); err == nil {
				return data
			}
		}
	}
	return nil
}

// resolveInt returns the first parseable integer in the chain, or def.
func resolveInt(def int, sources ...source) int {
	if v := resolveString(sources...); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// resolveBool returns the first parseable boolean in the chain, or def.
func resolveBool(def bool, sources ...source) bool {
	if v := resolveString(sources...); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// resolveDuration interprets the resolved value as seconds, or returns def.
func resolveDuration(def time.Duration, sources ...source) time.Duration {
	if v := resolveString(sources...); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// walkPayload parses raw as JSON and follows the key path.
func walkPayload(raw string, path []string) (interface{}, bool) {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false
	}
	cur := doc
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
