package notify

import (
	"bytes"
	"errors"
	"text/template"
	"time"
)

// DefaultTemplate is the fallback SMS body used when the gateway template
// cannot be resolved server-side.
const DefaultTemplate = `Abnormality on DTR {{.DTRNumber}} (meter {{.MeterNumber}}): {{.AbnormalityType}} at {{.Timestamp}}. Please attend.`

type templateData struct {
	DTRNumber       string
	MeterNumber     string
	AbnormalityType string
	Timestamp       string
}

// Template renders SMS body text from template vars.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses an SMS template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("sms-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to vars.
func (t *Template) Render(vars TemplateVars) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("sms template: nil")
	}
	data := templateData{
		DTRNumber:       vars.DTRNumber,
		MeterNumber:     vars.MeterNumber,
		AbnormalityType: vars.AbnormalityType,
		Timestamp:       vars.Timestamp.UTC().Format(time.RFC3339),
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
