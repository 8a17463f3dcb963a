// Package domain implements the notification dispatcher: every delivery
// attempt leaves a durable audit record in the clients store, created as
// pending before the attempt and updated in place afterwards. Transport
// failures are recorded, never escalated to the caller.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	"github.com/gclavel/assurvie/internal/platform/id"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	"github.com/gclavel/assurvie/internal/services/notifications/mail"
	"github.com/gclavel/assurvie/internal/services/notifications/render"
)

// Caller identifies the advisor invoking an admin-gated operation.
type Caller struct {
	AdvisorID string
	Role      clientsstorage.AdvisorRole
}

// Request describes one outbound notification.
type Request struct {
	Channel   clientsstorage.NotificationChannel
	Recipient string
	Subject   string
	Body      string
	TextBody  string
	AdvisorID string
	DossierID string
	Metadata  map[string]string
}

// TemplateRequest describes one templated notification.
type TemplateRequest struct {
	Channel       clientsstorage.NotificationChannel
	Recipient     string
	RecipientName string
	Locale        string
	TemplateName  string
	SubjectArg    string
	Data          map[string]any
	AdvisorID     string
	DossierID     string
	Metadata      map[string]string
}

// Service is the notification dispatcher.
type Service struct {
	store       clientsstorage.NotificationStore
	transport   mail.Transport
	renderer    *render.Renderer
	clock       func() time.Time
	newID       func() (string, error)
	sentCount   metric.Int64Counter
	failedCount metric.Int64Counter
}

// NewService constructs the dispatcher. transport may be nil, in which case
// email deliveries fail and are recorded as such.
func NewService(store clientsstorage.NotificationStore, transport mail.Transport, renderer *render.Renderer, clock func() time.Time, newID func() (string, error)) (*Service, error) {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	meter := otel.Meter("assurvie.notifications")
	sentCount, err := meter.Int64Counter("notifications.sent",
		metric.WithDescription("Notifications accepted by their channel."))
	if err != nil {
		return nil, err
	}
	failedCount, err := meter.Int64Counter("notifications.failed",
		metric.WithDescription("Notification delivery attempts that failed."))
	if err != nil {
		return nil, err
	}
	return &Service{
		store:       store,
		transport:   transport,
		renderer:    renderer,
		clock:       clock,
		newID:       newID,
		sentCount:   sentCount,
		failedCount: failedCount,
	}, nil
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

func validChannel(channel clientsstorage.NotificationChannel) bool {
	switch channel {
	case clientsstorage.ChannelEmail, clientsstorage.ChannelSMS, clientsstorage.ChannelInternal:
		return true
	}
	return false
}

func encodeMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func decodeMetadata(raw string) map[string]string {
	metadata := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return metadata
	}
	_ = json.Unmarshal([]byte(raw), &metadata)
	return metadata
}

// Dispatch persists a pending audit record, attempts delivery, and updates
// the record with the outcome. The returned record reflects the final
// state; a transport failure does not produce an error.
func (s *Service) Dispatch(ctx context.Context, request Request) (clientsstorage.NotificationRecord, error) {
	if !validChannel(request.Channel) {
		return clientsstorage.NotificationRecord{}, apperrors.WithMetadata(apperrors.CodeValidation,
			"unknown notification channel", map[string]string{"channel": string(request.Channel)})
	}
	recipient := strings.TrimSpace(request.Recipient)
	if recipient == "" {
		return clientsstorage.NotificationRecord{}, apperrors.New(apperrors.CodeValidation, "notification recipient is required")
	}

	recordID, err := s.newID()
	if err != nil {
		return clientsstorage.NotificationRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate notification id", err)
	}
	now := s.nowUTC()
	record := clientsstorage.NotificationRecord{
		ID:           recordID,
		Channel:      request.Channel,
		Recipient:    recipient,
		Subject:      request.Subject,
		Body:         request.Body,
		Status:       clientsstorage.NotificationStatusPending,
		MetadataJSON: encodeMetadata(request.Metadata),
		AdvisorID:    strings.TrimSpace(request.AdvisorID),
		DossierID:    strings.TrimSpace(request.DossierID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.PutNotification(ctx, record); err != nil {
		return clientsstorage.NotificationRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "persist notification record", err)
	}

	return s.Deliver(ctx, record, request.TextBody), nil
}

// Deliver attempts transport for an existing pending record and updates it
// in place. Used by Dispatch and by the sweeper re-attempting stale
// pending records.
func (s *Service) Deliver(ctx context.Context, record clientsstorage.NotificationRecord, textBody string) clientsstorage.NotificationRecord {
	metadata := decodeMetadata(record.MetadataJSON)
	now := s.nowUTC()

	var attemptErr error
	switch record.Channel {
	case clientsstorage.ChannelInternal:
		// The audit record itself is the in-application inbox entry.
	case clientsstorage.ChannelEmail:
		if s.transport == nil {
			attemptErr = apperrors.New(apperrors.CodeTransportFailure, "email transport is not configured")
		} else {
			if textBody == "" {
				textBody = render.StripHTML(record.Body)
			}
			receipt, err := s.transport.Send(ctx, record.Recipient, record.Subject, record.Body, textBody)
			if err != nil {
				attemptErr = apperrors.Wrap(apperrors.CodeTransportFailure, "send email", err)
			} else if receipt.MessageID != "" {
				metadata["message_id"] = receipt.MessageID
			}
		}
	default:
		attemptErr = apperrors.WithMetadata(apperrors.CodeTransportFailure,
			"no transport for channel", map[string]string{"channel": string(record.Channel)})
	}

	if attemptErr != nil {
		record.Status = clientsstorage.NotificationStatusFailed
		record.Error = attemptErr.Error()
		s.failedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", string(record.Channel))))
	} else {
		record.Status = clientsstorage.NotificationStatusSent
		record.SentAt = &now
		record.Error = ""
		s.sentCount.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", string(record.Channel))))
	}
	record.MetadataJSON = encodeMetadata(metadata)
	record.UpdatedAt = now

	if err := s.store.UpdateNotification(ctx, record); err != nil {
		log.Printf("notification %s: record outcome: %v", record.ID, err)
	}
	return record
}

// DispatchTemplate renders a named template and dispatches the result.
// When rendering fails a failed audit record is still written so the
// attempt is visible in history, and the render error is returned.
func (s *Service) DispatchTemplate(ctx context.Context, request TemplateRequest) (clientsstorage.NotificationRecord, error) {
	if s.renderer == nil {
		return clientsstorage.NotificationRecord{}, apperrors.New(apperrors.CodeTemplateRenderError, "renderer is not configured")
	}
	metadata := map[string]string{}
	for key, value := range request.Metadata {
		metadata[key] = value
	}
	metadata["template"] = request.TemplateName

	rendered, renderErr := s.renderer.Render(request.TemplateName, request.Locale, request.RecipientName, request.SubjectArg, request.Data)
	if renderErr != nil {
		record, recordErr := s.recordRenderFailure(ctx, request, metadata, renderErr)
		if recordErr != nil {
			return clientsstorage.NotificationRecord{}, recordErr
		}
		return record, renderErr
	}

	return s.Dispatch(ctx, Request{
		Channel:   request.Channel,
		Recipient: request.Recipient,
		Subject:   rendered.Subject,
		Body:      rendered.HTMLBody,
		TextBody:  rendered.TextBody,
		AdvisorID: request.AdvisorID,
		DossierID: request.DossierID,
		Metadata:  metadata,
	})
}

func (s *Service) recordRenderFailure(ctx context.Context, request TemplateRequest, metadata map[string]string, renderErr error) (clientsstorage.NotificationRecord, error) {
	recordID, err := s.newID()
	if err != nil {
		return clientsstorage.NotificationRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate notification id", err)
	}
	now := s.nowUTC()
	record := clientsstorage.NotificationRecord{
		ID:           recordID,
		Channel:      request.Channel,
		Recipient:    strings.TrimSpace(request.Recipient),
		Subject:      "",
		Body:         "",
		Status:       clientsstorage.NotificationStatusFailed,
		Error:        renderErr.Error(),
		MetadataJSON: encodeMetadata(metadata),
		AdvisorID:    strings.TrimSpace(request.AdvisorID),
		DossierID:    strings.TrimSpace(request.DossierID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if record.Recipient == "" {
		record.Recipient = "unknown"
	}
	if err := s.store.PutNotification(ctx, record); err != nil {
		return clientsstorage.NotificationRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "persist notification record", err)
	}
	s.failedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", string(request.Channel))))
	return record, nil
}

// Resend re-attempts a failed notification. Admin-only; the record is
// updated in place with a resent marker rather than duplicated. Records in
// any other state are not resendable.
func (s *Service) Resend(ctx context.Context, caller Caller, notificationID string) (clientsstorage.NotificationRecord, error) {
	if caller.Role != clientsstorage.RoleAdmin {
		return clientsstorage.NotificationRecord{}, apperrors.New(apperrors.CodeForbidden, "resend requires the admin role")
	}
	record, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return clientsstorage.NotificationRecord{}, mapNotificationErr(err)
	}
	if record.Status != clientsstorage.NotificationStatusFailed {
		return clientsstorage.NotificationRecord{}, apperrors.WithMetadata(apperrors.CodeNotResendable,
			"only failed notifications can be resent",
			map[string]string{"notification_id": record.ID, "status": string(record.Status)})
	}

	metadata := decodeMetadata(record.MetadataJSON)
	metadata["resent"] = "true"
	metadata["resent_by"] = caller.AdvisorID
	record.MetadataJSON = encodeMetadata(metadata)
	return s.Deliver(ctx, record, ""), nil
}

// History returns one page of audit records matching the filter, newest
// first with the total count.
func (s *Service) History(ctx context.Context, filter clientsstorage.NotificationFilter, page, perPage int) (clientsstorage.NotificationPage, error) {
	if perPage <= 0 {
		perPage = 50
	}
	result, err := s.store.ListNotifications(ctx, filter, page, perPage)
	if err != nil {
		return clientsstorage.NotificationPage{}, apperrors.Wrap(apperrors.CodeStoreFailure, "list notifications", err)
	}
	return result, nil
}

// Get returns one audit record.
func (s *Service) Get(ctx context.Context, notificationID string) (clientsstorage.NotificationRecord, error) {
	record, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return clientsstorage.NotificationRecord{}, mapNotificationErr(err)
	}
	return record, nil
}

// Delete removes one audit record. Admin escape hatch; normal operation
// keeps the trail intact.
func (s *Service) Delete(ctx context.Context, caller Caller, notificationID string) error {
	if caller.Role != clientsstorage.RoleAdmin {
		return apperrors.New(apperrors.CodeForbidden, "delete requires the admin role")
	}
	if err := s.store.DeleteNotification(ctx, notificationID); err != nil {
		return mapNotificationErr(err)
	}
	return nil
}

func mapNotificationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, clientsstorage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, "notification not found", err)
	}
	return apperrors.Wrap(apperrors.CodeStoreFailure, "notification store", err)
}
