package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// Message 渲染后的邮件
type Message struct {
	Subject string
	HTML    string
}

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: {{.Color}};">{{.Heading}}</h2>
<p>Dear {{.Name}},</p>
{{template "content" .}}
<br>
<p>Best regards,<br>{{.Org}} Team</p>
</div>{{end}}`

var contents = map[string]string{
	"welcome": `{{define "content"}}<p>Thank you for registering with {{.Org}}. Your application has been received.</p>
<p>Please complete the remaining registration steps. We will email you once a reviewer has processed your application.</p>{{end}}`,
	"approved": `{{define "content"}}<p>Your {{.Org}} membership application has been approved.</p>
<p><strong>Membership ID:</strong> {{.MembershipID}}</p>
{{if .Note}}<p><strong>Reviewer note:</strong> {{.Note}}</p>{{end}}
<p>You can now sign in to view your membership profile.</p>{{end}}`,
	"rejected": `{{define "content"}}<p>Thank you for your interest in {{.Org}} membership.</p>
<p>After review, your application could not be approved at this time.</p>
{{if .Note}}<p><strong>Reason:</strong> {{.Note}}</p>{{end}}
<p>Please contact us if you have questions or would like to reapply.</p>{{end}}`,
}

// Templates 邮件模板
type Templates struct {
	org       string
	templates map[string]*template.Template
	policy    *bluemonday.Policy
}

type templateData struct {
	Org          string
	Name         string
	Heading      string
	Color        string
	MembershipID string
	Note         template.HTML
}

// NewTemplates 创建邮件模板,org 为机构简称
func NewTemplates(org string) *Templates {
	parsed := make(map[string]*template.Template, len(contents))
	for name, content := range contents {
		parsed[name] = template.Must(template.Must(template.New(name).Parse(layout)).Parse(content))
	}
	return &Templates{
		org:       org,
		templates: parsed,
		policy:    bluemonday.UGCPolicy(),
	}
}

// Welcome 注册欢迎邮件
func (t *Templates) Welcome(name string) (*Message, error) {
	return t.render("welcome", fmt.Sprintf("Welcome to %s - Registration Received", t.org), templateData{
		Name:    name,
		Heading: fmt.Sprintf("Welcome to %s!", t.org),
		Color:   "#008080",
	})
}

// Approved 审核通过邮件
func (t *Templates) Approved(name, membershipID, notes string) (*Message, error) {
	return t.render("approved", fmt.Sprintf("%s Membership Approved", t.org), templateData{
		Name:         name,
		Heading:      "Congratulations! Your Membership is Approved",
		Color:        "#10b981",
		MembershipID: membershipID,
		Note:         t.sanitize(notes),
	})
}

// Rejected 审核拒绝邮件
func (t *Templates) Rejected(name, reason string) (*Message, error) {
	return t.render("rejected", fmt.Sprintf("%s Membership Application Update", t.org), templateData{
		Name:    name,
		Heading: "Membership Application Status",
		Color:   "#ef4444",
		Note:    t.sanitize(reason),
	})
}

// sanitize 审核人填写的内容可能包含标记,只保留安全的 HTML
func (t *Templates) sanitize(s string) template.HTML {
	return template.HTML(t.policy.Sanitize(s))
}

func (t *Templates) render(name, subject string, data templateData) (*Message, error) {
	data.Org = t.org
	var buf bytes.Buffer
	if err := t.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("failed to render %s mail: %w", name, err)
	}
	return &Message{Subject: subject, HTML: buf.String()}, nil
}
