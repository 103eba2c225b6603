package routes

import (
	"fmt"
)

const apiVersion = "v0"

// Version returns the current API version string used in routing (e.g., "v0").
func Version() string {
	return apiVersion
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

// Tasks returns the task resource base path (e.g., "/api/v0/tasks").
func Tasks() string {
	return Base() + "/tasks"
}

// Streams returns the live task stream base path (e.g., "/api/v0/streams/tasks").
func Streams() string {
	return Base() + "/streams/tasks"
}

// DeleteWithFiles is the lifecycle route with its own, stricter rate limit.
func DeleteWithFiles() string {
	return Tasks() + "/delete-with-files"
}

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
func HealthVersioned() string {
	return Base() + "/health"
}
