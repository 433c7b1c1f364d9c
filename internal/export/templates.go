package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title                string
	DescriptionHTML      template.HTML
	CreatedByName        string
	CreatedByDesignation string
	AssignDate           string
	DueDate              string
	Priority             string
	Status               string
	Assignees            []TemplateAssignee
	Attachments          []TemplateAttachment
	Submissions          []TemplateSubmission
	GeneratedAt          time.Time
}

type TemplateAssignee struct {
	Name        string
	Designation string
}

type TemplateAttachment struct {
	Name string
	URL  string
}

type TemplateSubmission struct {
	By              string
	At              time.Time
	DescriptionHTML template.HTML
	Attachments     []TemplateAttachment
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// paragraphs escapes plain text and turns blank-line separated blocks into
// paragraphs with line breaks kept.
func paragraphs(text string) template.HTML {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = template.HTMLEscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return template.HTML(b.String())
}
