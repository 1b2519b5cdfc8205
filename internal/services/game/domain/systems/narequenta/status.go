package narequenta

import "strings"

// StatusDefeated is the terminal status applied when hit points reach zero.
const StatusDefeated = "defeated"

// NormalizeStatus trims and lowercases a status id.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// HasStatus reports whether statuses contains name, ignoring case.
func HasStatus(statuses []string, name string) bool {
	want := NormalizeStatus(name)
	if want == "" {
		return false
	}
	for _, status := range statuses {
		if NormalizeStatus(status) == want {
			return true
		}
	}
	return false
}
