package channel

import "strings"

// Matches reports whether topic matches an MQTT subscription pattern.
//
// "+" matches exactly one level and "#" matches the parent level and
// everything below it. "#" is only honoured as the last level.
func Matches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")

	for i, p := range pl {
		if p == "#" {
			return i == len(pl)-1
		}
		if i >= len(tl) {
			return false
		}
		if p != "+" && p != tl[i] {
			return false
		}
	}

	return len(pl) == len(tl)
}
