package fabric

import "strings"

// TopicMatch reports whether key matches an AMQP topic-exchange pattern:
// segments are dot-separated, `*` matches exactly one segment and `#`
// matches zero or more segments. This mirrors RabbitMQ's own topic
// exchange semantics so the binding table in §4.1 can be unit tested
// without a live broker, and so the in-memory fake broker (see fake.go)
// used by component tests routes identically to production.
func TopicMatch(pattern, key string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchSegments(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	head, rest := pattern[0], pattern[1:]

	switch head {
	case "#":
		if matchSegments(rest, key) {
			return true
		}

		if len(key) == 0 {
			return false
		}

		return matchSegments(pattern, key[1:])
	case "*":
		if len(key) == 0 {
			return false
		}

		return matchSegments(rest, key[1:])
	default:
		if len(key) == 0 || key[0] != head {
			return false
		}

		return matchSegments(rest, key[1:])
	}
}
