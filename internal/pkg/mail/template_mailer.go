package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templateFS embed.FS

var subjects = map[string]string{
	"billing/invoice":        "Your invoice",
	"billing/trial_will_end": "Your trial ends soon",
}

// TemplateMailer renders the embedded e-mail templates and hands the result
// to a send function, SendMail by default.
type TemplateMailer struct {
	views *html.Engine
	send  func(to, subject, body string) error
}

// NewTemplateMailer loads the embedded templates.
func NewTemplateMailer() (*TemplateMailer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	return &TemplateMailer{views: engine, send: SendMail}, nil
}

// WithSender replaces the transport, e.g. to capture mails in tests.
func (m *TemplateMailer) WithSender(send func(to, subject, body string) error) *TemplateMailer {
	m.send = send
	return m
}

// SendTemplate renders the template name with data and sends it to to.
func (m *TemplateMailer) SendTemplate(_ context.Context, to, name string, data map[string]any) error {
	subject, ok := subjects[name]
	if !ok {
		return fmt.Errorf("unknown mail template %q", name)
	}

	var body bytes.Buffer
	if err := m.views.Render(&body, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return m.send(to, subject, body.String())
}
