package views

import (
	"embed"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed layouts billing auth
var files embed.FS

// NewEngine returns the html engine for all pages.
func NewEngine() *html.Engine {
	return html.NewFileSystem(http.FS(files), ".html")
}
