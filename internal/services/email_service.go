package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/lvidal/pricealert/pkg/mail"
)

// EmailService renders and delivers the application's transactional emails.
type EmailService struct {
	mailer  mail.Mailer
	from    string
	baseURL string
	appName string
}

// NewEmailService constructs an EmailService. baseURL is the externally
// reachable root of the HTTP server and is used to build verification links.
func NewEmailService(mailer mail.Mailer, from, baseURL, appName string) (*EmailService, error) {
	if mailer == nil {
		return nil, errors.New("email service: mailer is required")
	}
	if appName == "" {
		appName = "PriceAlert"
	}
	return &EmailService{
		mailer:  mailer,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		appName: appName,
	}, nil
}

// VerificationLink builds the clickable verification URL for a token.
func (s *EmailService) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verifyEmail?token=%s", s.baseURL, url.QueryEscape(token))
}

// SendVerification delivers the account verification email.
func (s *EmailService) SendVerification(ctx context.Context, to, name, token string) error {
	body := renderTemplate(verificationTemplate, map[string]any{
		"AppName": s.appName,
		"Name":    displayName(name, to),
		"Link":    s.VerificationLink(token),
	})
	return s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Verify your %s account", s.appName),
		Body:    body,
		HTML:    true,
	})
}

// PriceDropEmailInput carries everything needed to render a price-drop email.
type PriceDropEmailInput struct {
	To          string
	Name        string
	ProductName string
	VariantName string
	NewPrice    float64
	TargetPrice *float64
	ProductURL  string
	Message     string
}

// SendPriceDrop delivers a price-drop notification email.
func (s *EmailService) SendPriceDrop(ctx context.Context, input PriceDropEmailInput) error {
	product := input.ProductName
	if input.VariantName != "" {
		product = fmt.Sprintf("%s (%s)", product, input.VariantName)
	}

	data := map[string]any{
		"AppName":  s.appName,
		"Name":     displayName(input.Name, input.To),
		"Product":  product,
		"NewPrice": fmt.Sprintf("%.2f", input.NewPrice),
		"URL":      input.ProductURL,
		"Message":  input.Message,
	}
	if input.TargetPrice != nil {
		data["TargetPrice"] = fmt.Sprintf("%.2f", *input.TargetPrice)
	}

	return s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      []string{input.To},
		Subject: fmt.Sprintf("Price drop: %s is now €%.2f", product, input.NewPrice),
		Body:    renderTemplate(priceDropTemplate, data),
		HTML:    true,
	})
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fallback
}

func renderTemplate(tmpl *template.Template, data map[string]any) string {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		// Templates are static and parsed at init; execution only fails on
		// writer errors, which strings.Builder never produces.
		return ""
	}
	return sb.String()
}

var verificationTemplate = template.Must(template.New("verification").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Welcome to {{.AppName}}, {{.Name}}!</h2>
  <p>Please confirm your email address to start receiving price alerts.</p>
  <p>
    <a href="{{.Link}}" style="background: #2563eb; color: #fff; padding: 10px 18px; border-radius: 4px; text-decoration: none;">
      Verify my email
    </a>
  </p>
  <p>Or open this link in your browser:</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p style="color: #888; font-size: 12px;">This link expires in 24 hours. If you did not create an account, you can ignore this email.</p>
</body>
</html>`))

var priceDropTemplate = template.Must(template.New("priceDrop").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Good news, {{.Name}}!</h2>
  <p>{{.Message}}</p>
  <table style="border-collapse: collapse; margin: 16px 0;">
    <tr><td style="padding: 4px 12px 4px 0; color: #888;">Product</td><td>{{.Product}}</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #888;">New price</td><td><strong>€{{.NewPrice}}</strong></td></tr>
    {{if .TargetPrice}}<tr><td style="padding: 4px 12px 4px 0; color: #888;">Your target</td><td>€{{.TargetPrice}}</td></tr>{{end}}
  </table>
  {{if .URL}}<p><a href="{{.URL}}" style="background: #16a34a; color: #fff; padding: 10px 18px; border-radius: 4px; text-decoration: none;">View product</a></p>{{end}}
  <p style="color: #888; font-size: 12px;">You are receiving this because you set a price alert on {{.AppName}}.</p>
</body>
</html>`))
