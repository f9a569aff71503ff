package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PlainText reads UTF-8 text files. Invalid byte sequences are dropped.
type PlainText struct{}

func (PlainText) Name() string { return "text" }

func (PlainText) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
