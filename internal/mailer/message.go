package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/wneessen/go-mail"
)

const footer = "Sent via Voice AI Agent"

var bodyPolicy = newBodyPolicy()

func newBodyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "u", "br", "p", "strong", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	return p
}

var htmlLayout = template.Must(template.New("email").Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h2 style="color: #2c3e50;">{{.Subject}}</h2>
      <div style="margin-top: 20px;">{{.Body}}</div>
      <hr style="margin-top: 30px; border: none; border-top: 1px solid #ddd;">
      <p style="font-size: 12px; color: #999;">{{.Footer}}</p>
    </div>
  </body>
</html>`))

// SanitizeBody strips markup outside the small formatting allow-list and
// turns newlines into <br> tags.
func SanitizeBody(body string) string {
	return strings.ReplaceAll(bodyPolicy.Sanitize(body), "\n", "<br>")
}

// RenderHTML renders the HTML alternative of a message.
func RenderHTML(subject, body string) (string, error) {
	var buf bytes.Buffer
	err := htmlLayout.Execute(&buf, struct {
		Subject string
		Body    template.HTML
		Footer  string
	}{
		Subject: subject,
		Body:    template.HTML(SanitizeBody(body)), //nolint:gosec // sanitized by bodyPolicy
		Footer:  footer,
	})
	if err != nil {
		return "", fmt.Errorf("render html body: %w", err)
	}
	return buf.String(), nil
}

func (m *Mailer) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Address); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	html, err := RenderHTML(subject, body)
	if err != nil {
		return nil, err
	}
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}
