package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// ArtifactExtension is appended to the collector's filename prefix.
	ArtifactExtension = ".pt"

	DefaultFilenamePrefix = "wan_remote"

	// DefaultCollectorPrefix is used by the collector node when the graph
	// does not carry a filename_prefix input.
	DefaultCollectorPrefix = "wan_remote_tensors"
)

// NewClientID returns a fresh correlation token for one dispatch.
func NewClientID() string {
	return uuid.NewString()
}

// FilenamePrefix derives the per-dispatch prefix embedded in the job graph.
func FilenamePrefix(prefix, clientID string) string {
	return prefix + "_" + clientID
}

// ArtifactFilename is the name the collector writes and the dispatcher fetches.
func ArtifactFilename(filenamePrefix string) string {
	return filenamePrefix + ArtifactExtension
}

// ValidatePrefix rejects prefixes that would escape the host output directory.
func ValidatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("filename prefix is empty")
	case strings.ContainsAny(prefix, `/\`):
		return fmt.Errorf("filename prefix %q contains a path separator", prefix)
	case prefix == "." || prefix == "..":
		return fmt.Errorf("filename prefix %q is not a file name", prefix)
	}
	return nil
}
