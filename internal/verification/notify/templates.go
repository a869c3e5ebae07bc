package notify

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Template names used by the verification workflow.
const (
	TemplatePaymentVerified  = "payment_verified"
	TemplatePaymentRejected  = "payment_rejected"
	TemplateUpgradeActivated = "upgrade_activated"
)

var defaultTemplates = map[string]struct {
	subject string
	body    string
}{
	TemplatePaymentVerified: {
		subject: "Payment received for invoice {{.InvoiceID}}",
		body: `<p>Hello {{.AdminName}},</p>
<p>We have confirmed your payment of <strong>{{.Currency}} {{.Amount}}</strong> for {{.ShopName}}
(receipt {{.ReceiptReference}}).</p>
{{if .Activated}}<p>Your subscription is now active on the <strong>{{.PlanCode}}</strong> plan.</p>{{end}}
{{if .DashboardURL}}<p><a href="{{.DashboardURL}}">Open your dashboard</a></p>{{end}}`,
	},
	TemplatePaymentRejected: {
		subject: "Payment for invoice {{.InvoiceID}} could not be verified",
		body: `<p>Hello {{.AdminName}},</p>
<p>We could not verify the payment of {{.Currency}} {{.Amount}} for {{.ShopName}}
(receipt {{.ReceiptReference}}).</p>
<p>Reason: {{.Reason}}</p>
<p>Please submit the payment details again or contact support.</p>`,
	},
	TemplateUpgradeActivated: {
		subject: "{{.ShopName}} is now on the {{.PlanCode}} plan",
		body: `<p>Hello {{.AdminName}},</p>
<p>Your plan upgrade to <strong>{{.PlanCode}}</strong> has been activated.</p>`,
	},
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// TemplateManager renders email subjects and bodies by name.
type TemplateManager struct {
	mu        sync.RWMutex
	templates map[string]emailTemplate
}

// NewTemplateManager returns a manager preloaded with the built-in templates.
func NewTemplateManager() (*TemplateManager, error) {
	tm := &TemplateManager{templates: make(map[string]emailTemplate)}
	for name, t := range defaultTemplates {
		if err := tm.AddTemplate(name, t.subject, t.body); err != nil {
			return nil, err
		}
	}
	return tm, nil
}

// AddTemplate parses and registers a template, replacing any with the same name.
func (tm *TemplateManager) AddTemplate(name, subject, body string) error {
	subj, err := template.New(name + "_subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("parse subject %s: %w", name, err)
	}
	b, err := template.New(name).Parse(body)
	if err != nil {
		return fmt.Errorf("parse body %s: %w", name, err)
	}
	tm.mu.Lock()
	tm.templates[name] = emailTemplate{subject: subj, body: b}
	tm.mu.Unlock()
	return nil
}

// LoadDir overrides bodies from <name>.html files in dir. Subjects keep their defaults.
func (tm *TemplateManager) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".html")
		subject := name
		if def, ok := defaultTemplates[name]; ok {
			subject = def.subject
		}
		return tm.AddTemplate(name, subject, string(content))
	})
}

// Render returns the subject and HTML body of name executed with vars.
func (tm *TemplateManager) Render(name string, vars map[string]interface{}) (string, string, error) {
	tm.mu.RLock()
	t, ok := tm.templates[name]
	tm.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", name)
	}
	var subject, body strings.Builder
	if err := t.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}
	if err := t.body.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
