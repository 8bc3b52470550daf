package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Empty is treated the same as unset so a blank export cannot blank out a
// default.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
