package session

import "net/url"

// ParseInterviewID extracts the interview id from a page URL carrying the
// shareable-link query parameter. The id is display-only; prior state is
// never rehydrated from it.
func ParseInterviewID(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	id := parsed.Query().Get("interview")
	if id == "" {
		return "", false
	}
	return id, true
}
