// Package storage defines the persistence contracts for the clients store:
// employees, advisors, dossiers, and the notification audit trail. It is one
// of two independently-owned stores; policies and companies live in the
// insurance store and reference dossiers by id only.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// DossierStatus identifies one dossier lifecycle state.
type DossierStatus string

const (
	// DossierStatusPending is the initial state of a new dossier.
	DossierStatusPending DossierStatus = "pending"
	// DossierStatusComplete means exactly one active policy covers the dossier.
	DossierStatusComplete DossierStatus = "complete"
	// DossierStatusIncomplete means the dossier lost its policy.
	DossierStatusIncomplete DossierStatus = "incomplete"
	// DossierStatusArchived means the dossier is closed.
	DossierStatusArchived DossierStatus = "archived"
)

// AdvisorRole identifies the capability level of an advisor account.
type AdvisorRole string

const (
	// RoleAdmin grants access to every dossier and the admin operations.
	RoleAdmin AdvisorRole = "admin"
	// RoleAdvisor grants access to the advisor's own dossiers only.
	RoleAdvisor AdvisorRole = "advisor"
)

// NotificationChannel identifies one outbound delivery channel.
type NotificationChannel string

const (
	// ChannelEmail is SMTP delivery.
	ChannelEmail NotificationChannel = "email"
	// ChannelSMS is text-message delivery.
	ChannelSMS NotificationChannel = "sms"
	// ChannelInternal is the in-application inbox.
	ChannelInternal NotificationChannel = "internal"
)

// NotificationStatus identifies one audit-record delivery state.
type NotificationStatus string

const (
	// NotificationStatusPending means the record exists but delivery has
	// not completed.
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSent means the channel accepted the message.
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed means the delivery attempt failed.
	NotificationStatusFailed NotificationStatus = "failed"
)

// EmployeeRecord is one covered employee.
type EmployeeRecord struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdvisorRecord is one advisor account.
type AdvisorRecord struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      AdvisorRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DossierRecord is one employee case file.
type DossierRecord struct {
	ID         string
	EmployeeID string
	AdvisorID  string
	Reference  string
	Status     DossierStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DossierFilter narrows dossier listings.
type DossierFilter struct {
	AdvisorID string
	Status    DossierStatus
}

// DossierPage is one page of a dossier listing with its total count.
type DossierPage struct {
	Dossiers   []DossierRecord
	TotalCount int
}

// NotificationRecord is one durable delivery-attempt audit row. It is
// created with status pending before the attempt and updated in place
// afterwards; normal operation never deletes it.
type NotificationRecord struct {
	ID           string
	Channel      NotificationChannel
	Recipient    string
	Subject      string
	Body         string
	Status       NotificationStatus
	SentAt       *time.Time
	Error        string
	MetadataJSON string
	AdvisorID    string
	DossierID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NotificationFilter narrows notification history queries. Zero values
// leave the corresponding dimension unconstrained.
type NotificationFilter struct {
	Channel   NotificationChannel
	Status    NotificationStatus
	AdvisorID string
	DossierID string
	From      time.Time
	To        time.Time
}

// NotificationPage is one page of notification history with its total count.
type NotificationPage struct {
	Notifications []NotificationRecord
	TotalCount    int
}

// Tx is one transactional session against the clients store. It is owned
// exclusively by the coordinator invocation that opened it and must not be
// reused after Commit or Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	GetDossier(ctx context.Context, id string) (DossierRecord, error)
	PutDossier(ctx context.Context, record DossierRecord) error
	UpdateDossierStatus(ctx context.Context, id string, status DossierStatus, updatedAt time.Time) error
	DeleteDossier(ctx context.Context, id string) error

	GetEmployee(ctx context.Context, id string) (EmployeeRecord, error)
	GetAdvisor(ctx context.Context, id string) (AdvisorRecord, error)
}

// Store is the clients-store boundary. Methods outside Begin run in
// autocommit mode; coordinated work goes through Begin.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetDossier(ctx context.Context, id string) (DossierRecord, error)
	GetDossierByReference(ctx context.Context, reference string) (DossierRecord, error)
	PutDossier(ctx context.Context, record DossierRecord) error
	UpdateDossier(ctx context.Context, record DossierRecord) error
	ListDossiers(ctx context.Context, filter DossierFilter, page, perPage int) (DossierPage, error)
	CountDossiersByReferencePrefix(ctx context.Context, prefix string) (int, error)

	GetEmployee(ctx context.Context, id string) (EmployeeRecord, error)
	PutEmployee(ctx context.Context, record EmployeeRecord) error
	GetAdvisor(ctx context.Context, id string) (AdvisorRecord, error)
	PutAdvisor(ctx context.Context, record AdvisorRecord) error
}

// NotificationStore persists the notification audit trail. It lives in the
// clients store so history queries can join advisor and dossier context.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	GetNotification(ctx context.Context, id string) (NotificationRecord, error)
	UpdateNotification(ctx context.Context, record NotificationRecord) error
	ListNotifications(ctx context.Context, filter NotificationFilter, page, perPage int) (NotificationPage, error)
	ListStalePendingNotifications(ctx context.Context, olderThan time.Time, limit int) ([]NotificationRecord, error)
	DeleteNotification(ctx context.Context, id string) error
}
