// Package ingest turns documents into embedded, searchable chunks. The
// pipeline walks a directory or takes a single upload, extracts plain
// text per format, chunks it, embeds the chunks, and upserts them into
// the vector store while keeping the document records in sync.
package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/gkchatty/gkchatty-local/internal/documents"
)

// Extraction is the embeddable text pulled from one document.
type Extraction struct {
	Text       string
	Title      string
	SourceType documents.SourceType
}

// Extract converts raw document bytes into plain text. The source type
// comes from the walker or the upload hint; json and yaml inputs are
// refined to "openapi" when their content declares a spec version, and
// plain yaml degrades to text.
func Extract(content []byte, sourceType string) (*Extraction, error) {
	switch sourceType {
	case "markdown":
		text := string(content)
		return &Extraction{
			Text:       text,
			Title:      markdownTitle(text),
			SourceType: documents.SourceMarkdown,
		}, nil

	case "html":
		text, title, err := htmlToText(string(content))
		if err != nil {
			return nil, fmt.Errorf("parsing html: %w", err)
		}
		return &Extraction{Text: text, Title: title, SourceType: documents.SourceHTML}, nil

	case "text":
		return &Extraction{Text: string(content), SourceType: documents.SourceText}, nil

	case "json":
		if spec, ok := parseOpenAPISpec(content); ok {
			return renderOpenAPI(spec)
		}
		return &Extraction{Text: string(content), SourceType: documents.SourceJSON}, nil

	case "yaml":
		if spec, ok := parseOpenAPISpec(content); ok {
			return renderOpenAPI(spec)
		}
		// Plain YAML carries no dedicated extraction; index it verbatim.
		return &Extraction{Text: string(content), SourceType: documents.SourceText}, nil

	case "openapi":
		spec, ok := parseOpenAPISpec(content)
		if !ok {
			return nil, fmt.Errorf("parsing openapi spec: not valid JSON or YAML")
		}
		return renderOpenAPI(spec)
	}

	return nil, fmt.Errorf("unsupported source type %q", sourceType)
}

// markdownTitle returns the first level-one heading, if any.
func markdownTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// blockElements emit a line break after their content so extracted text
// keeps its visual structure.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "section": true,
	"article": true, "header": true, "footer": true, "blockquote": true,
	"pre": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "br": true, "table": true, "ul": true, "ol": true,
}

// htmlToText extracts the readable text from an HTML document, skipping
// scripts and styles. The title comes from <title> or the first h1.
func htmlToText(src string) (text, title string, err error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var firstH1 string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
				return
			case "h1":
				if firstH1 == "" {
					firstH1 = strings.TrimSpace(nodeText(n))
				}
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	if title == "" {
		title = firstH1
	}

	// Collapse whitespace line by line, dropping empties.
	var cleaned []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n"), title, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// parseOpenAPISpec tries JSON then YAML and reports whether the payload
// declares an OpenAPI or Swagger version.
func parseOpenAPISpec(content []byte) (map[string]any, bool) {
	var spec map[string]any
	if err := json.Unmarshal(content, &spec); err != nil {
		if err := yaml.Unmarshal(content, &spec); err != nil {
			return nil, false
		}
	}
	if spec == nil {
		return nil, false
	}
	if _, ok := spec["openapi"]; ok {
		return spec, true
	}
	if _, ok := spec["swagger"]; ok {
		return spec, true
	}
	return nil, false
}

// renderOpenAPI flattens an OpenAPI spec into one text block per
// endpoint so questions about specific routes retrieve well.
func renderOpenAPI(spec map[string]any) (*Extraction, error) {
	title := "API specification"
	version := ""
	if info, ok := spec["info"].(map[string]any); ok {
		if t, ok := info["title"].(string); ok && t != "" {
			title = t
		}
		if v, ok := info["version"].(string); ok {
			version = v
		}
	}

	var parts []string
	header := "API: " + title
	if version != "" {
		header += " (version " + version + ")"
	}
	if info, ok := spec["info"].(map[string]any); ok {
		if d, ok := info["description"].(string); ok && d != "" {
			header += "\n" + strings.TrimSpace(d)
		}
	}
	parts = append(parts, header)

	paths, ok := spec["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		return &Extraction{
			Text:       header,
			Title:      title,
			SourceType: documents.SourceOpenAPI,
		}, nil
	}

	// Sort paths for deterministic output.
	pathKeys := make([]string, 0, len(paths))
	for k := range paths {
		pathKeys = append(pathKeys, k)
	}
	sort.Strings(pathKeys)

	methods := []string{"get", "post", "put", "patch", "delete", "head", "options"}

	for _, path := range pathKeys {
		pathItem, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		for _, method := range methods {
			op, ok := pathItem[method].(map[string]any)
			if !ok {
				continue
			}
			parts = append(parts, renderEndpoint(strings.ToUpper(method), path, op))
		}
	}

	return &Extraction{
		Text:       strings.Join(parts, "\n\n"),
		Title:      title,
		SourceType: documents.SourceOpenAPI,
	}, nil
}

func renderEndpoint(method, path string, op map[string]any) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Endpoint: %s %s", method, path))

	if s, ok := op["summary"].(string); ok && s != "" {
		lines = append(lines, "Summary: "+strings.TrimSpace(s))
	}
	if d, ok := op["description"].(string); ok && d != "" {
		lines = append(lines, "Description: "+strings.TrimSpace(d))
	}

	if params, ok := op["parameters"].([]any); ok {
		var rendered []string
		for _, p := range params {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			name, _ := pm["name"].(string)
			in, _ := pm["in"].(string)
			if name != "" {
				rendered = append(rendered, fmt.Sprintf("%s (in %s)", name, in))
			}
		}
		if len(rendered) > 0 {
			lines = append(lines, "Parameters: "+strings.Join(rendered, "; "))
		}
	}

	if responses, ok := op["responses"].(map[string]any); ok {
		codes := make([]string, 0, len(responses))
		for code := range responses {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		var rendered []string
		for _, code := range codes {
			if rm, ok := responses[code].(map[string]any); ok {
				desc, _ := rm["description"].(string)
				if desc != "" {
					rendered = append(rendered, code+" "+desc)
				} else {
					rendered = append(rendered, code)
				}
			}
		}
		if len(rendered) > 0 {
			lines = append(lines, "Responses: "+strings.Join(rendered, "; "))
		}
	}

	return strings.Join(lines, "\n")
}
