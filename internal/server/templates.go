package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/index.html
var indexPageTemplateHTML string

var indexPageTemplate = template.Must(template.New("index").Parse(indexPageTemplateHTML))

// IndexPageData represents the data for the upload page
type IndexPageData struct {
	MaxUploadMB  int64
	HistoryLimit int
}
