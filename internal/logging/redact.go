package logging

import "strings"

// Redacted replaces values whose key names key material.
const Redacted = "[redacted]"

var sensitiveKeys = map[string]struct{}{
	"password":   {},
	"key":        {},
	"phrase":     {},
	"mnemonic":   {},
	"secret":     {},
	"passphrase": {},
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	if _, ok := sensitiveKeys[k]; ok {
		return true
	}
	if i := strings.LastIndexAny(k, "_-."); i >= 0 {
		_, ok := sensitiveKeys[k[i+1:]]
		return ok
	}
	return false
}

// redact returns args with the values of sensitive keys masked. The input
// slice is left untouched; a trailing key without a value is kept as is.
func redact(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || !isSensitive(key) {
			continue
		}
		if out == nil {
			out = make([]any, len(args))
			copy(out, args)
		}
		out[i+1] = Redacted
	}
	if out == nil {
		return args
	}
	return out
}
