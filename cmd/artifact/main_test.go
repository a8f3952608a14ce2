package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/wanremote/pkg/tensor"
)

func TestFindFiles(t *testing.T) {
	// tmpDir/
	//   wan_remote_1.pt
	//   wan_remote_2.pt
	//   notes.txt
	//   runs/
	//     wan_remote_3.pt
	//   link.pt -> wan_remote_1.pt
	tmpDir := t.TempDir()
	write := func(rel string) string {
		path := filepath.Join(tmpDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		return path
	}
	one := write("wan_remote_1.pt")
	two := write("wan_remote_2.pt")
	write("notes.txt")
	three := write(filepath.Join("runs", "wan_remote_3.pt"))
	require.NoError(t, os.Symlink(one, filepath.Join(tmpDir, "link.pt")))

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"top level", []string{filepath.Join(tmpDir, "*.pt")}, []string{one, two}},
		{"recursive", []string{filepath.Join(tmpDir, "**", "*.pt")}, []string{three, one, two}},
		{"overlapping patterns", []string{one, filepath.Join(tmpDir, "wan_remote_*.pt")}, []string{one, two}},
		{"no match", []string{filepath.Join(tmpDir, "*.bin")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findFiles(tt.patterns)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
			assert.IsIncreasing(t, got)
		})
	}

	_, err := findFiles([]string{filepath.Join(tmpDir, "[")})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	line := describe("positive", tensor.FromFloat32([]int64{1, 2}, []float32{1, 2}))
	assert.True(t, strings.Contains(line, "dtype=float32"))
	assert.Contains(t, line, "shape=[1 2]")
	assert.Contains(t, line, "bytes=8")
}
