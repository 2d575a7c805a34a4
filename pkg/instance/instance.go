package instance

import "os"

// GetID returns the process identifier used in logs and lock ownership:
// WORKER_ID, then the platform dyno name, then "local".
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if dyno := os.Getenv("DYNO"); dyno != "" {
		return dyno
	}
	return "local"
}
