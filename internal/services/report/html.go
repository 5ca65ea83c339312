package report

import (
	"bytes"
	"fmt"
	stdhtml "html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdownConverter = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, autolinks
	),
	goldmark.WithRendererOptions(
		html.WithXHTML(),
	),
)

// HTML converts report Markdown into an HTML fragment.
func HTML(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownConverter.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return buf.Bytes(), nil
}

const documentStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:860px;margin:2em auto;padding:0 1em;color:#222}
table{border-collapse:collapse;margin:1em 0}th,td{border:1px solid #ccc;padding:4px 10px;text-align:left}th{background:#f0f0f0}
blockquote{border-left:4px solid #ccc;margin:1em 0;padding:0 1em;color:#555}pre{background:#f5f5f5;padding:1em;overflow-x:auto}`

// Document wraps report Markdown in a standalone HTML page.
func Document(title, markdown string) ([]byte, error) {
	body, err := HTML(markdown)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n", stdhtml.EscapeString(title), documentStyle)
	buf.Write(body)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}
