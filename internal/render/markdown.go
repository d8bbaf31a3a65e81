package render

import (
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// PlainDescription converts an HTML-formatted description to Markdown text
// for the description column. Plain text passes through unchanged apart
// from trimming; content that fails to convert is dropped.
func PlainDescription(content string, logger *slog.Logger) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	if !strings.Contains(content, "<") {
		return strings.TrimSpace(content)
	}

	converted, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to convert HTML to Markdown", "error", err)
		}
		return ""
	}

	return strings.TrimSpace(converted)
}
