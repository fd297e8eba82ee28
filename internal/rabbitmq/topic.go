package rabbitmq

import (
	"strings"
)

// MatchTopic reports whether routingKey matches pattern under topic exchange rules:
// words are separated by dots, "*" matches exactly one word and "#" matches zero or more.
func MatchTopic(pattern, routingKey string) bool {
	return matchWords(words(pattern), words(routingKey))
}

// words splits a dotted key; the empty key has no words.
func words(key string) []string {
	if key == "" {
		return []string{}
	}

	return strings.Split(key, ".")
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	if pattern[0] == "#" {
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}

		return false
	}

	if len(key) == 0 {
		return false
	}

	if pattern[0] == "*" || pattern[0] == key[0] {
		return matchWords(pattern[1:], key[1:])
	}

	return false
}
