// Package service implements the directory operations: persons, sectors and
// organizations, the org chart snapshot and the call roster.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	"organograma/internal/audit"
	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/platform/tx"
	"organograma/pkg/requestcontext"
)

type PersonStore interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	UpdatePerson(ctx context.Context, p *models.Person) error
	FindPerson(ctx context.Context, id string) (*models.Person, error)
	ListPersons(ctx context.Context) ([]*models.Person, error)
	DeletePerson(ctx context.Context, id string) ([]string, error)
}

type SectorStore interface {
	CreateSector(ctx context.Context, s *models.Sector) error
	UpdateSector(ctx context.Context, s *models.Sector) error
	FindSector(ctx context.Context, id string) (*models.Sector, error)
	ListSectors(ctx context.Context) ([]*models.Sector, error)
	DeleteSector(ctx context.Context, id string) error
}

type OrganizationStore interface {
	CreateOrganization(ctx context.Context, o *models.Organization) error
	UpdateOrganization(ctx context.Context, o *models.Organization) error
	FindOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var tracer = otel.Tracer("organograma/directory")

// Service owns every directory write. Hierarchy rules (existing superior,
// no cycles) are checked inside the same transaction as the write.
type Service struct {
	persons        PersonStore
	sectors        SectorStore
	organizations  OrganizationStore
	tx             tx.Runner
	notifier       notify.Publisher
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTx sets the transaction runner. Defaults to a process-local lock.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// WithNotifier publishes a Change after every committed write.
func WithNotifier(p notify.Publisher) Option {
	return func(s *Service) {
		s.notifier = p
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(persons PersonStore, sectors SectorStore, organizations OrganizationStore, opts ...Option) *Service {
	s := &Service{
		persons:       persons,
		sectors:       sectors,
		organizations: organizations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLocal()
	}
	return s
}

func (s *Service) publish(ctx context.Context, table notify.Table, op notify.Op, id string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, notify.Change{Table: table, Op: op, ID: id}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish directory change",
			"table", table,
			"op", op,
			"id", id,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, subject string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{Action: action, Subject: subject}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"subject", subject,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// translate turns store errors into domain errors, passing domain errors
// through untouched.
func translate(err error, entity, op string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, entity+" name must be unique")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" references a record that no longer exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op+" "+entity)
	}
}
