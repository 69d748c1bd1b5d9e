// Package banner loads the welcome text shown to every new connection.
package banner

import "os"

const fallback = `
/======================================\
|         Welcome to TCServer          |
\======================================/
`

// Load reads the banner from path. It never fails: a missing or
// unreadable file yields the built-in fallback banner.
func Load(path string) string {
	if path == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return fallback
	}
	return string(data)
}
