package perception

import "encoding/json"

// ExtractJSON returns the last top-level JSON object in response that is
// valid JSON, skipping markdown fences and prose around it. Braces inside
// JSON strings are not counted. It returns "" when there is none.
func ExtractJSON(response string) string {
	var (
		last     string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)

	for i := 0; i < len(response); i++ {
		ch := response[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if candidate := response[start : i+1]; json.Valid([]byte(candidate)) {
					last = candidate
				}
				start = -1
			}
		}
	}

	return last
}
