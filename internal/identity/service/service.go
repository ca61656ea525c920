// Package service orchestrates identity creation, editing and lookup on top
// of the validation engine, identifier allocator, lifecycle machine and store.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"campusid/internal/identity/allocator"
	"campusid/internal/identity/lifecycle"
	"campusid/internal/identity/metrics"
	"campusid/internal/identity/models"
	"campusid/internal/identity/validation"
	"campusid/internal/platform/lock"
	"campusid/pkg/attrs"
	"campusid/pkg/requestcontext"
)

const (
	defaultMaxAllocationAttempts = 5
	defaultNotifyTimeout         = 3 * time.Second
	// maxGapProbes bounds how far allocation walks past ids left occupied
	// after administrative deletes.
	maxGapProbes = 1000
	tracerName   = "campusid/identity"

	invalidStatusLabel = "invalid"
)

// Store persists identities and their audit trail.
type Store interface {
	Insert(ctx context.Context, rec *models.IdentityRecord) error
	FindByID(ctx context.Context, id string) (*models.IdentityRecord, error)
	FindByEmail(ctx context.Context, email string) (*models.IdentityRecord, error)
	CountBySubCategory(ctx context.Context, sub models.SubCategory) (int, error)
	CountByNameDobSubCategory(ctx context.Context, first, last, dob string, sub models.SubCategory) (int, error)
	UpdateFields(ctx context.Context, id string, m models.Mutation) error
	AppendAuditEntries(ctx context.Context, entries []models.AuditEntry) error
	ListAuditByIdentity(ctx context.Context, id string) ([]models.AuditEntry, error)
	Execute(ctx context.Context, id string,
		validateFn func(*models.IdentityRecord) error,
		applyFn func(*models.IdentityRecord) (models.Mutation, error),
	) (*models.IdentityRecord, error)
	Search(ctx context.Context, f models.SearchFilter) ([]*models.IdentityRecord, error)
	Delete(ctx context.Context, id string) error
}

// Notifier tells a new member their identifier.
type Notifier interface {
	NotifyIdentityCreated(ctx context.Context, email, identityID string) error
}

// Locker serializes identifier allocation per sub-category.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Service manages the identity lifecycle.
type Service struct {
	store         Store
	catalog       *models.Catalog
	machine       *lifecycle.Machine
	allocator     *allocator.Allocator
	validator     *validation.Engine
	notifier      Notifier
	locker        Locker
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	maxAttempts   int
	notifyTimeout time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLocker replaces the in-process allocation lock, e.g. with a Redis lock
// shared by every replica.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithCatalog(c *models.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

func WithMachine(m *lifecycle.Machine) Option {
	return func(s *Service) {
		s.machine = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithMaxAllocationAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		maxAttempts:   defaultMaxAllocationAttempts,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = models.DefaultCatalog()
	}
	if s.machine == nil {
		s.machine = lifecycle.Default()
	}
	if s.locker == nil {
		s.locker = lock.NewSharded()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.allocator = allocator.New(s.catalog)
	s.validator = validation.New(s.catalog)
	return s
}

// Catalog returns the sub-category catalog in use.
func (s *Service) Catalog() *models.Catalog {
	return s.catalog
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if id, ok := attrs.Lookup[string](attributes, "identity_id"); ok && id != "" {
		trace.SpanFromContext(ctx).AddEvent(event, trace.WithAttributes(identityAttr(id)))
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
