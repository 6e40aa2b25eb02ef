package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"catnanny-backend/internal/message"
)

const contactNotificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>New contact message</h3>
  <p><strong>Name:</strong> {{.Name}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
  {{if .Subject}}<p><strong>Subject:</strong> {{.Subject}}</p>{{end}}
  <p><strong>Message:</strong><br/>{{.Body}}</p>
</body>
</html>`

var contactNotificationTmpl = template.Must(template.New("contact_notification").Parse(contactNotificationTemplate))

func (m *Mailer) SendContactNotification(ctx context.Context, msg message.Message) (string, error) {
	if m == nil || m.client == nil {
		return "", errMailDisabled
	}
	if strings.TrimSpace(m.adminEmail) == "" {
		return "", errMailDisabled
	}

	var buf bytes.Buffer
	if err := contactNotificationTmpl.Execute(&buf, msg); err != nil {
		return "", err
	}

	subject := fmt.Sprintf("New contact message from %s", msg.Name)
	if strings.TrimSpace(msg.Subject) != "" {
		subject = msg.Subject
	}
	return m.client.sendHTML(ctx, m.adminEmail, "", subject, buf.String())
}
