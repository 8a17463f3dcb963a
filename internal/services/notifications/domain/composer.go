package domain

import (
	"context"
	"fmt"
	"log"
	"strings"

	casesdomain "github.com/gclavel/assurvie/internal/services/cases/domain"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
	"github.com/gclavel/assurvie/internal/services/notifications/queue"
	"github.com/gclavel/assurvie/internal/services/notifications/render"
)

// Composer turns case-management events into queued notification
// dispatches. It decides recipients and builds template data; delivery and
// auditing belong to the dispatcher.
type Composer struct {
	dispatcher *Service
	queue      *queue.Queue
	locale     string
}

// NewComposer wires the composer. queue may be nil, in which case dispatch
// runs inline (used by tests and the sweeper).
func NewComposer(dispatcher *Service, q *queue.Queue, locale string) *Composer {
	return &Composer{dispatcher: dispatcher, queue: q, locale: locale}
}

func (c *Composer) submit(request TemplateRequest) {
	task := func(ctx context.Context) {
		if _, err := c.dispatcher.DispatchTemplate(ctx, request); err != nil {
			log.Printf("notification template %s: %v", request.TemplateName, err)
		}
	}
	if c.queue != nil {
		c.queue.Enqueue(task)
		return
	}
	task(context.Background())
}

func advisorName(advisor clientsstorage.AdvisorRecord) string {
	name := strings.TrimSpace(advisor.FirstName + " " + advisor.LastName)
	if name == "" {
		return advisor.Email
	}
	return name
}

func formatPercent(hundredths int64) string {
	return fmt.Sprintf("%d.%02d", hundredths/100, hundredths%100)
}

func (c *Composer) toAdvisor(advisor clientsstorage.AdvisorRecord, dossier clientsstorage.DossierRecord, templateName, subjectArg string, data map[string]any) {
	if strings.TrimSpace(advisor.Email) == "" {
		return
	}
	c.submit(TemplateRequest{
		Channel:       clientsstorage.ChannelEmail,
		Recipient:     advisor.Email,
		RecipientName: advisorName(advisor),
		Locale:        c.locale,
		TemplateName:  templateName,
		SubjectArg:    subjectArg,
		Data:          data,
		AdvisorID:     advisor.ID,
		DossierID:     dossier.ID,
	})
}

func (c *Composer) toCompany(company insurancestorage.CompanyRecord, dossier clientsstorage.DossierRecord, templateName, subjectArg string, data map[string]any) {
	if strings.TrimSpace(company.Email) == "" {
		return
	}
	c.submit(TemplateRequest{
		Channel:       clientsstorage.ChannelEmail,
		Recipient:     company.Email,
		RecipientName: company.Name,
		Locale:        c.locale,
		TemplateName:  templateName,
		SubjectArg:    subjectArg,
		Data:          data,
		DossierID:     dossier.ID,
	})
}

// DossierCreated notifies the owning advisor of a dossier opened on their
// behalf.
func (c *Composer) DossierCreated(_ context.Context, event casesdomain.DossierEvent) {
	c.toAdvisor(event.Advisor, event.Dossier, render.TemplateDossierCreated, event.Dossier.Reference, map[string]any{
		"Reference": event.Dossier.Reference,
	})
}

// DossierChanged notifies the advisor and each company holding a policy on
// the dossier of a status change.
func (c *Composer) DossierChanged(_ context.Context, event casesdomain.DossierEvent) {
	data := func() map[string]any {
		return map[string]any{
			"Reference":      event.Dossier.Reference,
			"PreviousStatus": string(event.PreviousStatus),
			"Status":         string(event.Dossier.Status),
		}
	}
	c.toAdvisor(event.Advisor, event.Dossier, render.TemplateDossierChange, event.Dossier.Reference, data())
	for _, company := range event.Companies {
		c.toCompany(company, event.Dossier, render.TemplateDossierChange, event.Dossier.Reference, data())
	}
}

// DossierDeleted notifies the advisor and affected companies that the
// dossier and its contracts are gone.
func (c *Composer) DossierDeleted(_ context.Context, event casesdomain.DossierEvent) {
	data := func() map[string]any {
		return map[string]any{"Reference": event.Dossier.Reference}
	}
	c.toAdvisor(event.Advisor, event.Dossier, render.TemplateDossierDeleted, event.Dossier.Reference, data())
	for _, company := range event.Companies {
		c.toCompany(company, event.Dossier, render.TemplateDossierDeleted, event.Dossier.Reference, data())
	}
}

// PolicyCreated notifies the issuing company.
func (c *Composer) PolicyCreated(_ context.Context, event casesdomain.PolicyEvent) {
	c.toCompany(event.Company, event.Dossier, render.TemplatePolicyCreated, event.Policy.PolicyNumber, map[string]any{
		"PolicyNumber": event.Policy.PolicyNumber,
		"Reference":    event.Dossier.Reference,
	})
}

// PolicyStatusChanged notifies the issuing company of the transition.
func (c *Composer) PolicyStatusChanged(_ context.Context, event casesdomain.PolicyEvent) {
	c.toCompany(event.Company, event.Dossier, render.TemplatePolicyStatusChange, event.Policy.PolicyNumber, map[string]any{
		"PolicyNumber":   event.Policy.PolicyNumber,
		"PreviousStatus": string(event.PreviousStatus),
		"Status":         string(event.Policy.Status),
	})
}

// PolicyDeleted notifies the issuing company.
func (c *Composer) PolicyDeleted(_ context.Context, event casesdomain.PolicyEvent) {
	c.toCompany(event.Company, event.Dossier, render.TemplatePolicyDeleted, event.Policy.PolicyNumber, map[string]any{
		"PolicyNumber": event.Policy.PolicyNumber,
		"Reference":    event.Dossier.Reference,
	})
}

// BeneficiaryChanged notifies the company and the advisor of a designation
// change.
func (c *Composer) BeneficiaryChanged(_ context.Context, event casesdomain.BeneficiaryEvent) {
	name := strings.TrimSpace(event.Beneficiary.FirstName + " " + event.Beneficiary.LastName)
	data := func() map[string]any {
		return map[string]any{
			"BeneficiaryName": name,
			"Percent":         formatPercent(event.Beneficiary.PercentHundredths),
			"PolicyNumber":    event.Policy.PolicyNumber,
		}
	}
	c.toCompany(event.Company, event.Dossier, render.TemplateBeneficiaryChange, event.Policy.PolicyNumber, data())
	c.toAdvisor(event.Advisor, event.Dossier, render.TemplateBeneficiaryChange, event.Policy.PolicyNumber, data())
}
