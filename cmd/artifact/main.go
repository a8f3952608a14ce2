package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

// findFiles expands glob patterns (including **) into a sorted, de-duplicated
// list of regular files.
func findFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, name := range matches {
			info, err := os.Lstat(name)
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				files = append(files, name)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func describe(name string, t tensor.Tensor) string {
	return fmt.Sprintf("  %-8s dtype=%s shape=%v elements=%d bytes=%d", name, t.DType, t.Shape, t.NumElements(), len(t.Data))
}

func main() {
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger, err := logging.New(*logLevel, "text")
	if err != nil {
		slog.Error("Invalid log level", "error", err)
		os.Exit(2)
	}

	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{"*.pt"}
	}

	files, err := findFiles(patterns)
	if err != nil {
		logger.Fatal("Failed to expand patterns", "error", err)
	}
	if len(files) == 0 {
		logger.Fatal("No artifacts found", "patterns", patterns)
	}

	failed := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Error("Failed to read artifact", "file", file, "error", err)
			failed++
			continue
		}
		a, err := artifact.Decode(data)
		if err != nil {
			fmt.Printf("%s: invalid: %v\n", file, err)
			failed++
			continue
		}
		fmt.Printf("%s (%d bytes)\n", file, len(data))
		fmt.Println(describe(artifact.KeyPositive, a.Positive))
		fmt.Println(describe(artifact.KeyNegative, a.Negative))
	}

	if failed > 0 {
		os.Exit(1)
	}
}
