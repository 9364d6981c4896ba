package export

import (
	"bytes"
	"html/template"
	"time"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 15:04 MST") },
}).Parse(summaryHTML))

// SummaryData holds data for the summary template.
type SummaryData struct {
	Title       string
	Status      string
	Subject     string
	Message     string
	HasPassword bool
	GeneratedAt time.Time
	Recipients  []SummaryRecipient
	History     []SummaryCommit
}

type SummaryRecipient struct {
	Name         string
	Email        string
	Role         string
	SendStatus   string
	SigningOrder int
	Fields       []SummaryField
}

type SummaryField struct {
	Type string
	Page int
	X, Y float64
}

type SummaryCommit struct {
	Hash      string
	Message   string
	CreatedAt time.Time
}

func RenderSummaryHTML(data SummaryData) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
    th, td { border: 1px solid #ccc; padding: 0.35rem 0.5rem; text-align: left; font-size: 0.9em; }
    .message { background: #f5f5f5; padding: 1rem; border-left: 3px solid #333; white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Status}}{{if .HasPassword}} | password protected{{end}} | generated {{formatDate .GeneratedAt}}</div>
  {{if .Subject}}<h2>{{.Subject}}</h2>{{end}}
  {{if .Message}}<div class="message">{{.Message}}</div>{{end}}
  <h2>Recipients</h2>
  <table>
    <tr><th>#</th><th>Name</th><th>Email</th><th>Role</th><th>Status</th><th>Fields</th></tr>
    {{range .Recipients}}
    <tr>
      <td>{{if .SigningOrder}}{{.SigningOrder}}{{end}}</td>
      <td>{{.Name}}</td>
      <td>{{.Email}}</td>
      <td>{{.Role}}</td>
      <td>{{.SendStatus}}</td>
      <td>{{range .Fields}}{{.Type}} p{{.Page}}<br>{{else}}none{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{if .History}}
  <h2>History</h2>
  <table>
    <tr><th>Commit</th><th>Change</th><th>When</th></tr>
    {{range .History}}<tr><td>{{.Hash}}</td><td>{{.Message}}</td><td>{{formatDate .CreatedAt}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
