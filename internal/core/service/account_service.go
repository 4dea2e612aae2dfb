package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/texresolve/accounts-api/internal/api/metrics"
	"github.com/texresolve/accounts-api/internal/core/domain"
	"github.com/texresolve/accounts-api/internal/core/ports"
)

const activationSubject = "Account Creation"

var tracer = otel.Tracer("github.com/texresolve/accounts-api/internal/core/service")

// AccountDependencies groups the collaborators of AccountService.
// Mail, Renderer, Events and Ledger are optional.
type AccountDependencies struct {
	Users    ports.UserRepository
	Hasher   ports.PasswordHasher
	Tokens   ports.TokenIssuer
	Renderer ports.MailRenderer
	Mail     ports.MailQueue
	Events   ports.EventPublisher
	Ledger   ports.CredentialLedger
}

// AccountService implements registration, login and self-service account management.
type AccountService struct {
	deps AccountDependencies
	log  zerolog.Logger
	now  func() time.Time
}

func NewAccountService(deps AccountDependencies, log zerolog.Logger) *AccountService {
	return &AccountService{deps: deps, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Register")
	defer span.End()

	// The plaintext stands in for the digest until the shape checks pass.
	candidate := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: in.Password,
		Role:         domain.Role(in.Role),
	}
	if err := candidate.Validate(); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if _, err := s.deps.Users.FindByEmail(ctx, candidate.Email); err == nil {
		metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		return nil, domain.NewValidationError("Email already exists")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, domain.NewStoreError(err))
	}

	msg, err := s.renderActivation(candidate)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, domain.NewValidationError(err.Error()))
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, domain.NewValidationError(err.Error()))
	}
	now := s.now()
	candidate.PasswordHash = hash
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	created, err := s.deps.Users.Create(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return nil, domain.NewValidationError("Email already exists")
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, domain.NewStoreError(err))
	}
	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.String("user.id", created.ID))

	if msg != nil && s.deps.Mail != nil && !s.deps.Mail.Enqueue(*msg) {
		s.logger(ctx).Warn().Str("user_id", created.ID).Msg("activation mail dropped")
	}
	s.publish(ctx, domain.AccountEvent{
		Type:   domain.EventUserRegistered,
		UserID: created.ID,
		Email:  created.Email,
		Role:   created.Role,
	})

	return created, nil
}

func (s *AccountService) renderActivation(u *domain.User) (*ports.MailMessage, error) {
	if s.deps.Renderer == nil {
		return nil, nil
	}
	body, err := s.deps.Renderer.Render(ports.MailTemplateActivation, ports.ActivationMail{
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	})
	if err != nil {
		return nil, err
	}
	return &ports.MailMessage{To: u.Email, Subject: activationSubject, HTMLBody: body}, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Login")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewAuthenticationError(http.StatusForbidden, "Invalid credentials")
	}

	user, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			return nil, invalidLogin()
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, &domain.Error{Kind: domain.KindStore, Status: http.StatusForbidden, Message: err.Error(), Err: err})
	}

	ok, err := s.deps.Hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("stored password digest unreadable")
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, invalidLogin()
	}

	token, expiresAt, err := s.deps.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, s.fail(span, err)
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.String("user.id", user.ID))

	return &ports.LoginResult{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}

func invalidLogin() *domain.Error {
	return domain.NewAuthenticationError(http.StatusForbidden, "Invalid email or password")
}

// Update applies the caller's own name, role and password changes. Empty
// fields are left as they are.
func (s *AccountService) Update(ctx context.Context, caller domain.Identity, in ports.UpdateInput) error {
	ctx, span := tracer.Start(ctx, "AccountService.Update", trace.WithAttributes(attribute.String("user.id", caller.SubjectID)))
	defer span.End()

	user, err := s.findCaller(ctx, caller)
	if err != nil {
		return s.fail(span, err)
	}

	var upd domain.ProfileUpdate
	if name := strings.TrimSpace(in.Name); name != "" {
		upd.Name = &name
	}
	if in.Role != "" {
		role := domain.Role(in.Role)
		if !role.Valid() {
			return domain.NewValidationError("`" + in.Role + "` is not a valid role")
		}
		upd.Role = &role
	}

	now := s.now()
	if in.Password != "" {
		changed, err := s.changePassword(ctx, user, in.Password, now)
		if err != nil {
			return s.fail(span, err)
		}
		if changed {
			metrics.AccountChangesTotal.WithLabelValues("update_password").Inc()
			s.markCredentialsChanged(ctx, user.ID, now)
		}
	}

	if !upd.Empty() {
		if err := s.deps.Users.UpdateProfile(ctx, user.ID, upd, now); err != nil {
			return s.fail(span, storeOrNotFound(err))
		}
		metrics.AccountChangesTotal.WithLabelValues("update_profile").Inc()
	}

	event := domain.AccountEvent{Type: domain.EventUserUpdated, UserID: user.ID, Email: user.Email, Role: user.Role}
	if upd.Role != nil {
		event.Role = *upd.Role
	}
	s.publish(ctx, event)
	return nil
}

// changePassword stores a new digest only when plain does not already match
// the persisted one. It reports whether the digest was replaced.
func (s *AccountService) changePassword(ctx context.Context, user *domain.User, plain string, at time.Time) (bool, error) {
	if same, err := s.deps.Hasher.Verify(plain, user.PasswordHash); err == nil && same {
		return false, nil
	}
	hash, err := s.hash(plain)
	if err != nil {
		return false, domain.NewValidationError(err.Error())
	}
	if err := s.deps.Users.UpdatePassword(ctx, user.ID, hash, at); err != nil {
		return false, storeOrNotFound(err)
	}
	return true, nil
}

// Delete removes the caller's own account.
func (s *AccountService) Delete(ctx context.Context, caller domain.Identity) error {
	ctx, span := tracer.Start(ctx, "AccountService.Delete", trace.WithAttributes(attribute.String("user.id", caller.SubjectID)))
	defer span.End()

	user, err := s.findCaller(ctx, caller)
	if err != nil {
		return s.fail(span, err)
	}
	if err := s.deps.Users.Delete(ctx, user.ID); err != nil {
		return s.fail(span, storeOrNotFound(err))
	}
	metrics.AccountChangesTotal.WithLabelValues("delete").Inc()
	s.markCredentialsChanged(ctx, user.ID, s.now())

	s.publish(ctx, domain.AccountEvent{Type: domain.EventUserDeleted, UserID: user.ID, Email: user.Email, Role: user.Role})
	return nil
}

func (s *AccountService) List(ctx context.Context) ([]*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AccountService.List")
	defer span.End()

	users, err := s.deps.Users.List(ctx)
	if err != nil {
		return nil, s.fail(span, domain.NewStoreError(err))
	}
	return users, nil
}

func (s *AccountService) Analytics(ctx context.Context) (*domain.RoleStats, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Analytics")
	defer span.End()

	stats, err := s.deps.Users.CountByRole(ctx)
	if err != nil {
		return nil, s.fail(span, domain.NewStoreError(err))
	}
	return stats, nil
}

func (s *AccountService) findCaller(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	if caller.SubjectID == "" {
		return nil, domain.NewAuthenticationError(http.StatusUnauthorized, "Authentication Failed")
	}
	user, err := s.deps.Users.FindByID(ctx, caller.SubjectID)
	if err != nil {
		return nil, storeOrNotFound(err)
	}
	return user, nil
}

func (s *AccountService) hash(plain string) (string, error) {
	start := time.Now()
	defer func() { metrics.PasswordHashDuration.Observe(time.Since(start).Seconds()) }()
	return s.deps.Hasher.Hash(plain)
}

func (s *AccountService) markCredentialsChanged(ctx context.Context, userID string, at time.Time) {
	if s.deps.Ledger == nil {
		return
	}
	if err := s.deps.Ledger.MarkChanged(ctx, userID, at); err != nil {
		s.logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("could not record credential change")
	}
}

func (s *AccountService) publish(ctx context.Context, event domain.AccountEvent) {
	if s.deps.Events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.deps.Events.Publish(ctx, event); err != nil {
		s.logger(ctx).Error().Err(err).Str("event", string(event.Type)).Str("user_id", event.UserID).Msg("publish account event")
	}
}

// logger prefers the request-scoped logger and falls back to the service one.
func (s *AccountService) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

// fail records err on the span and returns it unchanged.
func (s *AccountService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func storeOrNotFound(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.NewNotFoundError("User not found")
	}
	return domain.NewStoreError(err)
}
