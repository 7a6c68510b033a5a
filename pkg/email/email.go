package email

import (
	"bytes"
	"crypto/tls"
	"html/template"

	gomail "gopkg.in/gomail.v2"
)

// Email contains details about email
type Email struct {
	Subject         string
	From            string
	To              []string
	Content         string
	EmailHostServer string
	Port            int
	Username        string
	Password        string
	// Attachments are file paths attached to the mail
	Attachments []string
}

const (
	EmailPortKey = 25
)

// Sender delivers a composed message
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Message composes the mail
func (email *Email) Message() *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", email.From)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("To", email.To...)
	m.SetBody("text/html", email.Content)
	for _, a := range email.Attachments {
		m.Attach(a)
	}
	return m
}

// Dialer returns the SMTP dialer for the mail server
func (email *Email) Dialer() *gomail.Dialer {
	port := email.Port
	if port == 0 {
		port = EmailPortKey
	}
	dialer := gomail.NewDialer(email.EmailHostServer, port, email.Username, email.Password)
	dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	return dialer
}

// SendEmail sends email to recipients
func (email *Email) SendEmail() error {
	return email.SendWith(email.Dialer())
}

// SendWith sends email through s
func (email *Email) SendWith(s Sender) error {
	return s.DialAndSend(email.Message())
}

// SummaryRow is one line of the run summary table
type SummaryRow struct {
	Name     string
	Status   string
	Duration string
	Result   string
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<html><body>
<h3>{{.Title}}</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Scenario</th><th>Status</th><th>Duration</th><th>Result</th></tr>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Duration}}</td><td>{{.Result}}</td></tr>
{{end}}</table>
</body></html>`))

// RenderSummary renders the html body of a run summary
func RenderSummary(title string, rows []SummaryRow) (string, error) {
	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		Title string
		Rows  []SummaryRow
	}{title, rows})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
