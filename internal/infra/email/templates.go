package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Notice kinds. They double as the notification log kind.
const (
	KindExpiring = "expiring"
	KindAssigned = "assigned"
	KindFrozen   = "frozen"
	KindUnfrozen = "unfrozen"
	KindRenewed  = "renewed"
	KindExpired  = "expired"
)

// Notice is the data every template renders from.
type Notice struct {
	Kind      string
	Name      string
	Plan      string
	DaysLeft  int
	ExpiresAt time.Time
}

var subjects = map[string]string{
	KindExpiring: "Your tips subscription expires soon",
	KindAssigned: "Your tips subscription is active",
	KindFrozen:   "Your tips subscription is paused",
	KindUnfrozen: "Your tips subscription is running again",
	KindRenewed:  "Your tips subscription was renewed",
	KindExpired:  "Your tips subscription has ended",
}

var layout = template.Must(template.New("notice").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"/></head>
<body style="font-family:Arial,sans-serif;background:#f6f8fa;padding:24px">
<div style="max-width:560px;margin:auto;background:#fff;border-radius:10px;padding:24px">
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
{{- if eq .Kind "expiring"}}
<p>Your <b>{{.Plan}}</b> subscription ends in {{.DaysLeft}} day{{if ne .DaysLeft 1}}s{{end}} ({{.ExpiresAt.Format "02 Jan 2006 15:04 MST"}}). Renew to keep receiving tips.</p>
{{- else if eq .Kind "assigned"}}
<p>Your <b>{{.Plan}}</b> subscription is active until {{.ExpiresAt.Format "02 Jan 2006"}}.</p>
{{- else if eq .Kind "frozen"}}
<p>Your <b>{{.Plan}}</b> subscription is paused. Paused days are not counted.</p>
{{- else if eq .Kind "unfrozen"}}
<p>Your <b>{{.Plan}}</b> subscription is running again and now ends {{.ExpiresAt.Format "02 Jan 2006"}}.</p>
{{- else if eq .Kind "renewed"}}
<p>Your <b>{{.Plan}}</b> subscription was renewed and runs until {{.ExpiresAt.Format "02 Jan 2006"}}.</p>
{{- else}}
<p>Your <b>{{.Plan}}</b> subscription has ended.</p>
{{- end}}
</div></body></html>`))

// Render returns the subject and HTML body for n.
func Render(n Notice) (string, string, error) {
	subject, ok := subjects[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notice kind %q", n.Kind)
	}
	var buf bytes.Buffer
	if err := layout.Execute(&buf, n); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
