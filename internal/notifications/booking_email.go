package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"catnanny-backend/internal/booking"
)

// Mailer sends the transactional mail for bookings and contact messages
// through Brevo. A Mailer built on a nil client reports mail as disabled
// on every send.
type Mailer struct {
	client     *BrevoClient
	adminEmail string
}

func NewMailer(client *BrevoClient, adminEmail string) *Mailer {
	return &Mailer{client: client, adminEmail: adminEmail}
}

var errMailDisabled = errors.New("mail is not configured")

type bookingEmailData struct {
	Name        string
	Service     string
	Dates       []string
	CatCount    int
	Total       string
	Deposit     string
	CheckoutURL string
	Reason      string
}

func bookingData(b booking.Booking) bookingEmailData {
	total := b.TotalCents()
	return bookingEmailData{
		Name:     b.Name,
		Service:  b.Service,
		Dates:    b.Dates,
		CatCount: b.CatCount,
		Total:    formatCents(total),
		Deposit:  formatCents(total / 2),
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

const approvalTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Good news! Your booking request has been approved.</p>
  <ul>
    <li>Service: {{.Service}}</li>
    <li>Dates: {{range $i, $d := .Dates}}{{if $i}}, {{end}}{{$d}}{{end}}</li>
    <li>Cats: {{.CatCount}}</li>
    <li>Total: {{.Total}}</li>
    <li>Deposit due now: {{.Deposit}}</li>
  </ul>
  <p>To confirm your booking, please pay the deposit within the next 23 hours:</p>
  <p><a href="{{.CheckoutURL}}">Pay deposit ({{.Deposit}})</a></p>
  <p>If the deposit is not paid in time, the booking is released and the dates become available again.</p>
  <p>See you soon!</p>
</body>
</html>`

const declineTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Unfortunately we are unable to take your booking for the requested dates:</p>
  <ul>
    <li>Service: {{.Service}}</li>
    <li>Dates: {{range $i, $d := .Dates}}{{if $i}}, {{end}}{{$d}}{{end}}</li>
  </ul>
  <p>Feel free to reach out for alternative dates.</p>
</body>
</html>`

const cancellationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Your booking was cancelled because the deposit was not paid within 23 hours.</p>
  <ul>
    <li>Service: {{.Service}}</li>
    <li>Dates: {{range $i, $d := .Dates}}{{if $i}}, {{end}}{{$d}}{{end}}</li>
  </ul>
  <p>The dates are now available again. You are welcome to submit a new request.</p>
</body>
</html>`

const alertTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>New booking request</h3>
  <p><strong>Name:</strong> {{.Name}}</p>
  <p><strong>Service:</strong> {{.Service}}</p>
  <p><strong>Dates:</strong> {{range $i, $d := .Dates}}{{if $i}}, {{end}}{{$d}}{{end}}</p>
  <p><strong>Cats:</strong> {{.CatCount}}</p>
  <p><strong>Total:</strong> {{.Total}}</p>
</body>
</html>`

var (
	approvalTmpl     = template.Must(template.New("booking_approval").Parse(approvalTemplate))
	declineTmpl      = template.Must(template.New("booking_decline").Parse(declineTemplate))
	cancellationTmpl = template.Must(template.New("booking_cancellation").Parse(cancellationTemplate))
	alertTmpl        = template.Must(template.New("booking_alert").Parse(alertTemplate))
)

func renderTemplate(tmpl *template.Template, data bookingEmailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *Mailer) SendBookingApproval(ctx context.Context, b booking.Booking, checkoutURL string) (string, error) {
	if m == nil || m.client == nil {
		return "", errMailDisabled
	}
	data := bookingData(b)
	data.CheckoutURL = checkoutURL
	htmlBody, err := renderTemplate(approvalTmpl, data)
	if err != nil {
		return "", err
	}
	return m.client.sendHTML(ctx, b.Email, b.Name, "Your booking is approved - deposit required", htmlBody)
}

func (m *Mailer) SendBookingDecline(ctx context.Context, b booking.Booking) (string, error) {
	if m == nil || m.client == nil {
		return "", errMailDisabled
	}
	htmlBody, err := renderTemplate(declineTmpl, bookingData(b))
	if err != nil {
		return "", err
	}
	return m.client.sendHTML(ctx, b.Email, b.Name, "Your booking request", htmlBody)
}

func (m *Mailer) SendBookingCancellation(ctx context.Context, b booking.Booking) (string, error) {
	if m == nil || m.client == nil {
		return "", errMailDisabled
	}
	htmlBody, err := renderTemplate(cancellationTmpl, bookingData(b))
	if err != nil {
		return "", err
	}
	return m.client.sendHTML(ctx, b.Email, b.Name, "Your booking was cancelled", htmlBody)
}

func (m *Mailer) SendBookingAlert(ctx context.Context, b booking.Booking) (string, error) {
	if m == nil || m.client == nil {
		return "", errMailDisabled
	}
	if strings.TrimSpace(m.adminEmail) == "" {
		return "", errMailDisabled
	}
	htmlBody, err := renderTemplate(alertTmpl, bookingData(b))
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("New booking request from %s", b.Name)
	return m.client.sendHTML(ctx, m.adminEmail, "", subject, htmlBody)
}
