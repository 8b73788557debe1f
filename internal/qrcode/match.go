package qrcode

// Matches reports whether payload equals any of candidates.
func Matches(payload string, candidates []string) bool {
	for _, candidate := range candidates {
		if candidate == payload {
			return true
		}
	}
	return false
}
