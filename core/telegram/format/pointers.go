package format

// DerefString returns *s, or def when s is nil.
func DerefString(s *string, def string) string {
	if s != nil {
		return *s
	}
	return def
}
