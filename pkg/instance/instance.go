package instance

import "os"

// GetID returns the identifier of this API instance for log correlation.
func GetID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
