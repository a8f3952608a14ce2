package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactFilename(t *testing.T) {
	assert.Equal(t, "wan_remote_42.pt", ArtifactFilename(FilenamePrefix("wan_remote", "42")))
	assert.Equal(t, "wan_remote_tensors.pt", ArtifactFilename(DefaultCollectorPrefix))
}

func TestFilenameInjectiveOverClientID(t *testing.T) {
	const n = 1000
	seen := make(map[string]string, n)
	for range n {
		id := NewClientID()
		name := ArtifactFilename(FilenamePrefix(DefaultFilenamePrefix, id))
		if prev, dup := seen[name]; dup {
			t.Fatalf("client ids %s and %s map to the same filename %s", prev, id, name)
		}
		seen[name] = id
	}
	require.Len(t, seen, n)
}

func TestValidatePrefix(t *testing.T) {
	valid := []string{"wan_remote", "wan_remote_42", "a.b"}
	for _, p := range valid {
		assert.NoError(t, ValidatePrefix(p), p)
	}

	invalid := []string{"", ".", "..", "../etc/passwd", `dir\file`, "a/b"}
	for _, p := range invalid {
		assert.Error(t, ValidatePrefix(p), p)
	}
}

func TestParseEncoderType(t *testing.T) {
	for _, e := range EncoderTypes {
		got, err := ParseEncoderType(string(e))
		if err != nil {
			t.Fatalf("ParseEncoderType(%q) returned error: %v", e, err)
		}
		if got != e {
			t.Errorf("ParseEncoderType(%q) = %q", e, got)
		}
	}
	if len(EncoderTypes) != 20 {
		t.Errorf("expected 20 encoder types, got %d", len(EncoderTypes))
	}
	for _, bad := range []string{"", "WAN", "sdxl"} {
		if _, err := ParseEncoderType(bad); err == nil {
			t.Errorf("ParseEncoderType(%q) should fail", bad)
		}
	}
}
