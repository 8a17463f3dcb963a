package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound means a referenced dossier, policy, company,
	// beneficiary, or notification does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeForbidden means the caller does not own the referenced dossier
	// and is not an administrator.
	CodeForbidden Code = "FORBIDDEN"
	// CodeValidation means a required input was missing or malformed.
	CodeValidation Code = "VALIDATION"

	// CodeAllocationExceeded means a beneficiary write would push the
	// policy's total allocation above 100%.
	CodeAllocationExceeded Code = "ALLOCATION_EXCEEDED"
	// CodeDuplicatePolicy means an active policy already references the
	// dossier.
	CodeDuplicatePolicy Code = "DUPLICATE_POLICY"
	// CodeCompanyInUse means policies still reference the company.
	CodeCompanyInUse Code = "COMPANY_IN_USE"

	// CodeTemplateNotFound means no template is registered under the
	// requested name.
	CodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	// CodeTemplateRenderError means a registered template failed to render.
	CodeTemplateRenderError Code = "TEMPLATE_RENDER_ERROR"
	// CodeTransportFailure means the delivery channel rejected a send.
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	// CodeNotResendable means resend was requested for a record whose
	// status is not failed.
	CodeNotResendable Code = "NOT_RESENDABLE"

	// CodeStoreFailure means a commit or rollback failed at the store
	// level. Callers must treat the outcome as uncertain: the clients
	// store may have committed while the insurance store did not.
	CodeStoreFailure Code = "STORE_FAILURE"
)

// HTTPStatus maps the code to the response status used by the HTTP layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation,
		CodeAllocationExceeded,
		CodeDuplicatePolicy,
		CodeCompanyInUse,
		CodeNotResendable:
		return http.StatusBadRequest
	case CodeTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
