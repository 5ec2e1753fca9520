package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/russross/blackfriday/v2"
)

type document struct {
	Name  string
	File  string
	Title string
}

// documents lists everything /doc serves, in navigation order.
var documents = []document{
	{Name: "README", File: "README.md", Title: "Project Overview"},
	{Name: "API", File: "API.md", Title: "HTTP API"},
	{Name: "PIPELINE", File: "PIPELINE.md", Title: "Analysis Pipeline"},
	{Name: "OPERATIONS", File: "OPERATIONS.md", Title: "Operations Guide"},
	{Name: "FINGERPRINTS", File: "FINGERPRINTS.md", Title: "Author Fingerprints"},
}

var docPage = template.Must(template.New("doc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Current.Title}} - TruthScan</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2937; background: #f4f4f5; margin: 0; padding: 24px; }
header, main { max-width: 960px; margin: 0 auto; }
header nav a { color: #b91c1c; text-decoration: none; margin-right: 1rem; }
header nav a.current { font-weight: 600; }
main { background: #fff; border: 1px solid #e4e4e7; border-radius: 10px; padding: 2.5rem; margin-top: 1rem; }
h2 { color: #b91c1c; margin-top: 2rem; }
pre { background: #18181b; color: #f4f4f5; padding: 1rem; border-radius: 8px; overflow-x: auto; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #d4d4d8; padding: 0.5rem 0.75rem; text-align: left; }
@media (max-width: 768px) { body { padding: 8px; } main { padding: 1.25rem; } }
</style>
</head>
<body>
<header><nav>{{range .Docs}}<a href="/doc/{{.Name}}"{{if eq .Name $.Current.Name}} class="current"{{end}}>{{.Title}}</a>{{end}}</nav></header>
<main>{{.Body}}</main>
</body>
</html>`))

// DocsHandler renders the Markdown documentation
type DocsHandler struct {
	dir string
}

// NewDocsHandler serves documents from dir.
func NewDocsHandler(dir string) *DocsHandler {
	if dir == "" {
		dir = "docs"
	}
	return &DocsHandler{dir: dir}
}

// ServeMarkdownAsHTML handles GET /doc/:doc
func (h *DocsHandler) ServeMarkdownAsHTML(c *gin.Context) {
	doc, ok := lookupDocument(c.Param("doc"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	source, err := os.ReadFile(filepath.Join(h.dir, doc.File))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	body := blackfriday.Run(source,
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.AutoHeadingIDs),
		blackfriday.WithRenderer(blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
			Flags: blackfriday.CommonHTMLFlags,
		})),
	)

	var page bytes.Buffer
	err = docPage.Execute(&page, struct {
		Docs    []document
		Current document
		Body    template.HTML
	}{Docs: documents, Current: doc, Body: template.HTML(body)})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render document", "details": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}

func lookupDocument(name string) (document, bool) {
	for _, d := range documents {
		if d.Name == name {
			return d, true
		}
	}
	return document{}, false
}
