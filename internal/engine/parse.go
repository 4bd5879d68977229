package engine

import (
	"fmt"
	"strings"

	"github.com/src-lua/apogee/internal/storage"
)

// ParseStatus parses user input to an InstanceStatus.
// Supported: pending, done/completed, skip/not_necessary, miss/not_did.
func ParseStatus(input string) (storage.InstanceStatus, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	switch s {
	case "pending", "undo", "restore":
		return storage.StatusPending, nil
	case "done", "complete", "completed":
		return storage.StatusCompleted, nil
	case "skip", "skipped", "not_necessary", "not-necessary":
		return storage.StatusNotNecessary, nil
	case "miss", "missed", "not_did", "not-did":
		return storage.StatusNotDid, nil
	default:
		return "", fmt.Errorf("invalid status: %q", input)
	}
}
