// Package render produces localized notification subjects and bodies from
// named templates. French is the default locale; English is available on
// request.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
)

// Template names understood by the dispatcher.
const (
	TemplateDossierCreated     = "dossier-created"
	TemplateDossierChange      = "dossier-change"
	TemplateDossierDeleted     = "dossier-deleted"
	TemplatePolicyCreated      = "policy-created"
	TemplatePolicyStatusChange = "policy-status-change"
	TemplatePolicyDeleted      = "policy-deleted"
	TemplateBeneficiaryChange  = "beneficiary-change"
)

// Rendered is one localized notification payload. TextBody is the plain
// alternative derived from the HTML body.
type Rendered struct {
	Subject  string
	HTMLBody string
	TextBody string
}

var bodySources = map[string]string{
	TemplateDossierCreated: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.Reference}}</strong></p>`,
	TemplateDossierChange: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.Reference}}</strong>: {{.PreviousStatus}} &rarr; {{.Status}}</p>`,
	TemplateDossierDeleted: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.Reference}}</strong></p>`,
	TemplatePolicyCreated: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.PolicyNumber}}</strong> &mdash; {{.Reference}}</p>`,
	TemplatePolicyStatusChange: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.PolicyNumber}}</strong>: {{.PreviousStatus}} &rarr; {{.Status}}</p>`,
	TemplatePolicyDeleted: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.PolicyNumber}}</strong> &mdash; {{.Reference}}</p>`,
	TemplateBeneficiaryChange: `<p>{{.Greeting}}</p>
<p>{{.Line}}</p>
<p><strong>{{.BeneficiaryName}}</strong> ({{.Percent}}%) &mdash; {{.PolicyNumber}}</p>`,
}

func newMessageCatalog() (catalog.Catalog, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.French))
	type entry struct {
		key     string
		french  string
		english string
	}
	entries := []entry{
		{"greeting", "Bonjour %s,", "Hello %s,"},
		{"subject." + TemplateDossierCreated, "Nouveau dossier %s", "New case file %s"},
		{"line." + TemplateDossierCreated, "Un nouveau dossier vous a été assigné.", "A new case file has been assigned to you."},
		{"subject." + TemplateDossierChange, "Dossier %s mis à jour", "Case file %s updated"},
		{"line." + TemplateDossierChange, "Le statut du dossier a changé.", "The case file status has changed."},
		{"subject." + TemplateDossierDeleted, "Dossier %s supprimé", "Case file %s deleted"},
		{"line." + TemplateDossierDeleted, "Le dossier et ses contrats ont été supprimés.", "The case file and its contracts have been removed."},
		{"subject." + TemplatePolicyCreated, "Nouveau contrat %s", "New contract %s"},
		{"line." + TemplatePolicyCreated, "Un contrat d'assurance vie a été créé.", "A life insurance contract has been created."},
		{"subject." + TemplatePolicyStatusChange, "Contrat %s mis à jour", "Contract %s updated"},
		{"line." + TemplatePolicyStatusChange, "Le statut du contrat a changé.", "The contract status has changed."},
		{"subject." + TemplatePolicyDeleted, "Contrat %s résilié", "Contract %s removed"},
		{"line." + TemplatePolicyDeleted, "Le contrat a été supprimé du dossier.", "The contract has been removed from the case file."},
		{"subject." + TemplateBeneficiaryChange, "Bénéficiaires du contrat %s", "Beneficiaries of contract %s"},
		{"line." + TemplateBeneficiaryChange, "La désignation des bénéficiaires a été modifiée.", "The beneficiary designation has been modified."},
	}
	for _, e := range entries {
		if err := builder.SetString(language.French, e.key, e.french); err != nil {
			return nil, fmt.Errorf("register french message %s: %w", e.key, err)
		}
		if err := builder.SetString(language.English, e.key, e.english); err != nil {
			return nil, fmt.Errorf("register english message %s: %w", e.key, err)
		}
	}
	return builder, nil
}

// Renderer holds the parsed body templates and the message catalog.
type Renderer struct {
	templates  map[string]*template.Template
	catalog    catalog.Catalog
	defaultTag language.Tag
}

// NewRenderer parses the built-in templates. defaultLocale falls back to
// French when empty or unknown.
func NewRenderer(defaultLocale string) (*Renderer, error) {
	templates := make(map[string]*template.Template, len(bodySources))
	for name, source := range bodySources {
		parsed, err := template.New(name).Option("missingkey=error").Parse(source)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = parsed
	}
	messages, err := newMessageCatalog()
	if err != nil {
		return nil, err
	}
	tag := language.French
	if defaultLocale != "" {
		if parsed, parseErr := language.Parse(defaultLocale); parseErr == nil {
			tag = parsed
		}
	}
	return &Renderer{templates: templates, catalog: messages, defaultTag: tag}, nil
}

// Names returns the known template names.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// Render produces the localized subject and bodies for one template. The
// data map feeds the body template; subjectArg feeds the subject format
// string (a reference or contract number). locale may be empty for the
// default.
func (r *Renderer) Render(templateName, locale, recipientName, subjectArg string, data map[string]any) (Rendered, error) {
	parsed, ok := r.templates[templateName]
	if !ok {
		return Rendered{}, apperrors.WithMetadata(apperrors.CodeTemplateNotFound,
			"unknown notification template", map[string]string{"template": templateName})
	}

	tag := r.defaultTag
	if locale != "" {
		if parsedTag, err := language.Parse(locale); err == nil {
			tag = parsedTag
		}
	}
	printer := message.NewPrinter(tag, message.Catalog(r.catalog))

	if data == nil {
		data = map[string]any{}
	}
	data["Greeting"] = printer.Sprintf("greeting", recipientName)
	data["Line"] = printer.Sprintf("line." + templateName)

	var body strings.Builder
	if err := parsed.Execute(&body, data); err != nil {
		return Rendered{}, apperrors.Wrap(apperrors.CodeTemplateRenderError, "execute notification template", err)
	}

	htmlBody := body.String()
	return Rendered{
		Subject:  printer.Sprintf("subject."+templateName, subjectArg),
		HTMLBody: htmlBody,
		TextBody: StripHTML(htmlBody),
	}, nil
}
