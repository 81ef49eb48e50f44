// Package email renders digests as HTML email and delivers them over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	ttemplate "text/template"
	"time"

	"meridian/internal/core"
	"meridian/internal/links"
	"meridian/internal/paywall"
)

// EmailTemplate holds the colours and copy of the digest email.
type EmailTemplate struct {
	Name            string
	Subject         string
	Edition         string
	BackgroundColor string
	TextColor       string
	MutedColor      string
	BorderColor     string
	MaxWidth        string
	FontFamily      template.CSS
	FooterLink      string
	Sections        [2]SectionStyle
}

// SectionStyle styles one digest section.
type SectionStyle struct {
	Label    string
	Icon     string
	HeaderBg string
	Accent   string
}

// GetDefaultEmailTemplate returns the daily brief template
func GetDefaultEmailTemplate() *EmailTemplate {
	return &EmailTemplate{
		Name:            "default",
		Subject:         "Meridian AI Brief — {{.Count}} {{if eq .Count 1}}story{{else}}stories{{end}} · {{.Date}}",
		Edition:         "Fintech & Banking Edition",
		BackgroundColor: "#eef2f7",
		TextColor:       "#0f172a",
		MutedColor:      "#6b7280",
		BorderColor:     "#e5e7eb",
		MaxWidth:        "680px",
		FontFamily:      "Inter, -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif",
		FooterLink:      "https://news.smol.ai/issues",
		Sections: [2]SectionStyle{
			{Label: "Banking AI", Icon: "🏦", HeaderBg: "#0f2444", Accent: "#3b82f6"},
			{Label: "General AI", Icon: "🤖", HeaderBg: "#0f2e1a", Accent: "#22c55e"},
		},
	}
}

// GetMinimalEmailTemplate returns a plain variant used for test sends
func GetMinimalEmailTemplate() *EmailTemplate {
	tmpl := GetDefaultEmailTemplate()
	tmpl.Name = "minimal"
	tmpl.BackgroundColor = "#ffffff"
	tmpl.MaxWidth = "560px"
	tmpl.FontFamily = "Georgia, 'Times New Roman', serif"
	tmpl.Sections[0].HeaderBg = "#374151"
	tmpl.Sections[1].HeaderBg = "#374151"
	return tmpl
}

type storyView struct {
	Index     int
	Title     string
	Summary   string
	Impact    string
	URL       string
	Domain    string
	Favicon   string
	Paywalled bool
}

type sectionView struct {
	Style   SectionStyle
	Stories []storyView
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Meridian Daily AI Brief</title>
</head>
<body style="margin:0;padding:0;background:{{.Template.BackgroundColor}};font-family:{{.Template.FontFamily}};">
<table width="100%" cellpadding="0" cellspacing="0" role="presentation" style="background:{{.Template.BackgroundColor}};">
  <tr>
    <td align="center" style="padding:28px 8px 40px;">
      <table width="680" cellpadding="0" cellspacing="0" role="presentation" style="max-width:{{.Template.MaxWidth}};width:100%;border-radius:14px;overflow:hidden;">
        <tr>
          <td style="background:#0f2444;padding:32px 36px 28px;">
            <p style="margin:0 0 2px;font-size:10px;font-weight:700;letter-spacing:0.14em;text-transform:uppercase;color:#60a5fa;">MERIDIAN</p>
            <h1 style="margin:0 0 6px;font-size:26px;font-weight:800;color:#ffffff;">Daily AI Brief</h1>
            <p style="margin:0;font-size:13px;color:#94a3b8;">{{.Date}} &middot; {{.Template.Edition}}</p>
            {{with .Brief}}<p class="brief" style="margin:10px 0 0;font-size:13px;color:#cbd5e1;">{{.}}</p>{{end}}
          </td>
        </tr>
        <tr>
          <td style="background:#ffffff;padding:0;">
            {{range .Sections}}{{if .Stories}}
            <table width="100%" cellpadding="0" cellspacing="0" role="presentation" class="section">
              <tr>
                <td style="background:{{.Style.HeaderBg}};padding:14px 36px;">
                  <span style="font-size:13px;font-weight:700;letter-spacing:0.06em;text-transform:uppercase;color:#ffffff;">{{.Style.Icon}} {{.Style.Label}}</span>
                </td>
              </tr>
              <tr><td style="padding:20px 28px 8px;">
              {{$accent := .Style.Accent}}
              {{range .Stories}}
                <table width="100%" cellpadding="0" cellspacing="0" role="presentation" class="story" style="margin-bottom:16px;border:1px solid {{if .Paywalled}}#fcd34d{{else}}{{$.Template.BorderColor}}{{end}};border-radius:10px;background:#ffffff;">
                  <tr>
                    <td style="padding:18px 22px 16px;">
                      <p style="margin:0 0 10px;font-size:11px;font-weight:600;color:{{$.Template.MutedColor}};text-transform:uppercase;">
                        <img src="{{.Favicon}}" width="16" height="16" alt="{{.Domain}}" style="vertical-align:middle;border-radius:3px;" />
                        {{.Domain}} &nbsp;#{{.Index}}
                        {{if .Paywalled}}<span class="paywall" style="margin-left:8px;background:#fef3c7;color:#92400e;padding:2px 8px;border-radius:999px;">Paywall</span>{{end}}
                      </p>
                      <p style="margin:0 0 10px;font-size:16px;font-weight:700;color:{{$.Template.TextColor}};">{{.Title}}</p>
                      <p style="margin:0 0 12px;font-size:13px;color:#374151;line-height:1.65;">{{.Summary}}</p>
                      <p style="margin:0 0 14px;font-size:12px;color:#4b5563;border-left:3px solid {{$accent}};padding:10px 14px;background:#f8fafc;"><strong>Action: </strong>{{.Impact}}</p>
                      <a href="{{.URL}}" style="display:inline-block;font-size:12px;font-weight:600;color:#ffffff;background:{{$accent}};text-decoration:none;padding:7px 16px;border-radius:6px;">Read article →</a>
                    </td>
                  </tr>
                </table>
              {{end}}
              </td></tr>
            </table>
            {{end}}{{end}}
            {{if not .HasStories}}
            <p class="empty" style="padding:32px;color:{{.Template.MutedColor}};font-style:italic;text-align:center;">No qualifying stories were found for this digest window.</p>
            {{end}}
          </td>
        </tr>
        <tr>
          <td style="background:#f8fafc;padding:20px 36px 24px;border-top:1px solid {{.Template.BorderColor}};">
            <p style="margin:0;font-size:11px;color:#9ca3af;line-height:1.7;">
              You are receiving this because you subscribed to Meridian's daily AI digest.<br />
              Curated by AI &middot; Delivered daily &middot; <a href="{{.Template.FooterLink}}" style="color:#9ca3af;">AINews</a>
            </p>
          </td>
        </tr>
      </table>
    </td>
  </tr>
</table>
</body>
</html>`

var parsedHTML = template.Must(template.New("email").Parse(htmlTemplate))

// RenderDigestHTML renders a digest with the default template.
func RenderDigestHTML(digest core.DailyDigest) (string, error) {
	return RenderHTMLEmail(digest, GetDefaultEmailTemplate())
}

// RenderHTMLEmail renders a digest as a self-contained HTML email. Stories
// whose source is paywalled carry a badge.
func RenderHTMLEmail(digest core.DailyDigest, emailTemplate *EmailTemplate) (string, error) {
	sections := []sectionView{
		{Style: emailTemplate.Sections[0], Stories: storyViews(digest.BankingStories)},
		{Style: emailTemplate.Sections[1], Stories: storyViews(digest.AIStories)},
	}

	data := struct {
		Template   *EmailTemplate
		Date       string
		Brief      string
		Sections   []sectionView
		HasStories bool
	}{
		Template:   emailTemplate,
		Date:       FormatDate(digest.Date),
		Brief:      digest.BriefSummary,
		Sections:   sections,
		HasStories: digest.TotalStories() > 0,
	}

	var buf bytes.Buffer
	if err := parsedHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return buf.String(), nil
}

func storyViews(stories []core.DigestStory) []storyView {
	views := make([]storyView, 0, len(stories))
	for i, s := range stories {
		domain, err := links.Hostname(s.SourceURL)
		if err != nil {
			domain = "source"
		}
		views = append(views, storyView{
			Index:     i + 1,
			Title:     s.Title,
			Summary:   s.ExecutiveSummary,
			Impact:    s.BusinessImpact,
			URL:       s.SourceURL,
			Domain:    domain,
			Favicon:   "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(domain) + "&sz=32",
			Paywalled: paywall.IsPaywalled(s.SourceURL),
		})
	}
	return views
}

// FormatDate renders a YYYY-MM-DD date as "Monday, January 2, 2006". Other
// input is returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// Subject returns the subject line for a digest.
func Subject(digest core.DailyDigest) string {
	subject, err := GenerateSubject(GetDefaultEmailTemplate(), digest)
	if err != nil {
		return "Meridian AI Brief · " + digest.Date
	}
	return subject
}

// GenerateSubject generates the subject using the template
func GenerateSubject(emailTemplate *EmailTemplate, digest core.DailyDigest) (string, error) {
	tmpl, err := ttemplate.New("subject").Parse(emailTemplate.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to parse subject template: %w", err)
	}

	data := struct {
		Count int
		Date  string
	}{
		Count: digest.TotalStories(),
		Date:  digest.Date,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute subject template: %w", err)
	}
	return buf.String(), nil
}

// WriteHTMLEmail writes rendered HTML to outputDir and returns the path
func WriteHTMLEmail(content, outputDir, filename string) (string, error) {
	if !strings.HasSuffix(filename, ".html") {
		filename += ".html"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write email: %w", err)
	}
	return path, nil
}
