package settings

import "fmt"

// Open builds the backend named by kind: "memory" or "sqlite"
func Open(kind, path, secret string) (Backend, error) {
	switch kind {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		if path == "" {
			path = "promptlab_settings.db"
		}
		return OpenSQLite(path, secret)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", kind)
	}
}
