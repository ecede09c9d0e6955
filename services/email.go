package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/config"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// DigestSender delivers the daily new-papers digest.
type DigestSender interface {
	SendDigest(papers []models.Paper) error
}

type SMTPDigestSender struct {
	config *config.Config
}

func NewSMTPDigestSender(cfg *config.Config) *SMTPDigestSender {
	return &SMTPDigestSender{config: cfg}
}

// SendDigest emails the given papers to the configured recipients. An empty
// paper list or missing SMTP configuration is a no-op, not an error.
func (s *SMTPDigestSender) SendDigest(papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	if s.config.SMTPHost == "" || s.config.SMTPFrom == "" {
		return nil
	}

	recipients := []string{}
	for _, r := range s.config.DigestRecipients {
		if strings.TrimSpace(r) != "" {
			recipients = append(recipients, strings.TrimSpace(r))
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no digest recipients configured")
	}

	subject := fmt.Sprintf("arXiv digest: %d new papers", len(papers))
	htmlBody, textBody, err := generateDigestContent(papers)
	if err != nil {
		return fmt.Errorf("failed to generate digest content: %w", err)
	}

	return s.sendEmail(recipients, subject, htmlBody, textBody)
}

func generateDigestContent(papers []models.Paper) (htmlBody, textBody string, err error) {
	htmlT, err := template.New("html").Parse(digestHTMLTemplate)
	if err != nil {
		return "", "", err
	}
	textT, err := template.New("text").Parse(digestTextTemplate)
	if err != nil {
		return "", "", err
	}

	data := struct {
		Count  int
		Papers []models.Paper
	}{Count: len(papers), Papers: papers}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlT.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	if err := textT.Execute(&textBuf, data); err != nil {
		return "", "", err
	}

	return htmlBuf.String(), textBuf.String(), nil
}

func (s *SMTPDigestSender) sendEmail(recipients []string, subject, htmlBody, textBody string) error {
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)

	message := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="boundary123"

--boundary123
Content-Type: text/plain; charset=UTF-8

%s

--boundary123
Content-Type: text/html; charset=UTF-8

%s

--boundary123--`,
		s.config.SMTPFrom,
		strings.Join(recipients, ", "),
		subject,
		textBody,
		htmlBody)

	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.SMTPFrom, recipients, []byte(message))
}

const digestHTMLTemplate = `<html><body>
<h2>New arXiv papers ({{.Count}})</h2>
{{range .Papers}}
<div style="margin-bottom: 16px;">
<p><strong><a href="{{.PDFURL}}">{{.Title}}</a></strong></p>
<p>{{.Authors}} &mdash; {{.Categories}}</p>
<p>{{.Summary}}</p>
</div>
{{end}}
</body></html>`

const digestTextTemplate = `New arXiv papers ({{.Count}})

{{range .Papers}}{{.Title}}
{{.Authors}} | {{.Categories}}
{{.PDFURL}}

{{.Summary}}

----

{{end}}`
