package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/commng/commng/internal/observability"
	"github.com/commng/commng/internal/rolekey"
	"github.com/commng/commng/internal/shared"
)

const defaultExpiry = 24 * time.Hour

// Rejection messages returned by ValidateCode.
const (
	msgNotFound = "Invalid invite code"
	msgRevoked  = "Invite code has been revoked"
	msgUsed     = "Invite code has already been used"
	msgExpired  = "Invite code has expired"
)

// PolicyEngine is the slice of the policy engine the invite service needs:
// a permission check for its administrative surface and the grant path
// redemption delegates to.
type PolicyEngine interface {
	Validate(ctx context.Context, identity, roleKey string) (bool, error)
	Grant(ctx context.Context, granter, grantee, roleKey string) error
}

// Service mints, validates, redeems and revokes invite codes.
type Service struct {
	store    Store
	policy   PolicyEngine
	logger   *slog.Logger
	metrics  *observability.Metrics
	validate *validator.Validate
	now      func() time.Time
	newCode  func() (string, error)
}

// NewService wires the invite code service. metrics may be nil.
func NewService(store Store, policy PolicyEngine, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  generateCode,
	}
}

// CreateParams describes a new invite.
type CreateParams struct {
	RoleKeys       []string `validate:"required,min=1,dive,required"`
	ExpiresInHours int      `validate:"omitempty,gt=0"`
}

// Validation is the outcome of checking a code. Valid=false carries a
// message suitable for direct display; infrastructure failures surface as
// errors instead.
type Validation struct {
	Valid    bool
	Message  string
	RoleKeys []string
}

// RedemptionResult reports which bundled keys were granted and which were
// not. A partially failed redemption still consumes the code.
type RedemptionResult struct {
	Assigned []string
	Failed   []string
}

// Page is one slice of the invite listing.
type Page struct {
	Invites    []InviteCode
	Pagination shared.Pagination
}

// Create mints a new invite carrying the given role-key bundle. The admin
// must hold the invite management permission; global superusers pass by the
// policy engine's superuser rule.
func (s *Service) Create(ctx context.Context, admin string, params CreateParams) (*InviteCode, error) {
	if err := s.authorize(ctx, admin); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(params); err != nil {
		return nil, shared.NewValidationError("At least one role key is required")
	}
	for _, raw := range params.RoleKeys {
		if _, err := rolekey.Parse(raw); err != nil {
			return nil, shared.NewValidationError(fmt.Sprintf("Malformed role key %q", raw))
		}
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	expiry := defaultExpiry
	if params.ExpiresInHours > 0 {
		expiry = time.Duration(params.ExpiresInHours) * time.Hour
	}
	now := s.now()
	invite := &InviteCode{
		ID:        uuid.NewString(),
		Code:      code,
		RoleKeys:  append([]string(nil), params.RoleKeys...),
		CreatedBy: admin,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if err := s.store.Insert(ctx, invite); err != nil {
		return nil, fmt.Errorf("invites: insert: %w", err)
	}
	s.logger.Info("invite created",
		slog.String("invite_id", invite.ID),
		slog.String("created_by", admin),
		slog.Int("role_keys", len(invite.RoleKeys)))
	return invite, nil
}

// ValidateCode checks whether code is redeemable and returns its bundle
// literally, with no hierarchy expansion applied.
func (s *Service) ValidateCode(ctx context.Context, code string) (Validation, error) {
	invite, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Validation{Message: msgNotFound}, nil
		}
		return Validation{}, fmt.Errorf("invites: lookup code: %w", err)
	}
	switch invite.Status(s.now()) {
	case StatusRevoked:
		return Validation{Message: msgRevoked}, nil
	case StatusUsed:
		return Validation{Message: msgUsed}, nil
	case StatusExpired:
		return Validation{Message: msgExpired}, nil
	}
	return Validation{Valid: true, RoleKeys: append([]string(nil), invite.RoleKeys...)}, nil
}

// Redeem consumes the code for identity and grants its bundle. The
// mark-used transition happens before any grant, so of two concurrent
// redemptions exactly one proceeds. Individual grant failures do not abort
// the redemption; they are reported in the result.
func (s *Service) Redeem(ctx context.Context, code, identity string) (RedemptionResult, error) {
	validation, err := s.ValidateCode(ctx, code)
	if err != nil {
		s.metrics.ObserveRedemption(false)
		return RedemptionResult{}, err
	}
	if !validation.Valid {
		s.metrics.ObserveRedemption(false)
		return RedemptionResult{}, shared.NewValidationError(validation.Message)
	}

	invite, err := s.store.GetByCode(ctx, code)
	if err != nil {
		s.metrics.ObserveRedemption(false)
		return RedemptionResult{}, fmt.Errorf("invites: lookup code: %w", err)
	}
	won, err := s.store.MarkUsed(ctx, invite.ID, identity, s.now())
	if err != nil {
		s.metrics.ObserveRedemption(false)
		return RedemptionResult{}, fmt.Errorf("invites: mark used: %w", err)
	}
	if !won {
		s.metrics.ObserveRedemption(false)
		return RedemptionResult{}, shared.NewValidationError(msgUsed)
	}

	var result RedemptionResult
	for _, roleKey := range invite.RoleKeys {
		if err := s.policy.Grant(ctx, invite.CreatedBy, identity, roleKey); err != nil {
			s.logger.Warn("invite grant failed",
				slog.String("invite_id", invite.ID),
				slog.String("identity", identity),
				slog.String("role_key", roleKey),
				slog.Any("error", err))
			result.Failed = append(result.Failed, roleKey)
			continue
		}
		result.Assigned = append(result.Assigned, roleKey)
	}
	s.metrics.ObserveRedemption(true)
	s.logger.Info("invite redeemed",
		slog.String("invite_id", invite.ID),
		slog.String("identity", identity),
		slog.Int("assigned", len(result.Assigned)),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}

// Revoke permanently disables an unused code.
func (s *Service) Revoke(ctx context.Context, admin, codeID string) error {
	if err := s.authorize(ctx, admin); err != nil {
		return err
	}
	invite, err := s.store.GetByID(ctx, codeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError(msgNotFound)
		}
		return fmt.Errorf("invites: lookup id: %w", err)
	}
	switch invite.Status(s.now()) {
	case StatusUsed:
		return shared.NewValidationError(msgUsed)
	case StatusRevoked:
		return shared.NewValidationError(msgRevoked)
	}
	if err := s.store.SetRevoked(ctx, invite.ID, admin, s.now()); err != nil {
		return err
	}
	s.logger.Info("invite revoked",
		slog.String("invite_id", invite.ID),
		slog.String("revoked_by", admin))
	return nil
}

// List returns one page of invites, optionally filtered by derived status.
func (s *Service) List(ctx context.Context, admin, status string, limit, offset int) (Page, error) {
	if err := s.authorize(ctx, admin); err != nil {
		return Page{}, err
	}
	if status != "" && !ValidStatus(status) {
		return Page{}, shared.NewValidationError(fmt.Sprintf("Unknown status filter %q", status))
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	invites, hasMore, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("invites: list: %w", err)
	}
	return Page{
		Invites:    invites,
		Pagination: shared.NewPagination(limit, offset, hasMore),
	}, nil
}

func (s *Service) authorize(ctx context.Context, admin string) error {
	ok, err := s.policy.Validate(ctx, admin, rolekey.InviteManage.String())
	if err != nil {
		return fmt.Errorf("invites: authorize %s: %w", admin, err)
	}
	if !ok {
		return fmt.Errorf("invites: %s: %w", admin, shared.ErrForbidden)
	}
	return nil
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("invites: generate code: %w", err)
		}
		_, err = s.store.GetByCode(ctx, code)
		if errors.Is(err, shared.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("invites: check code: %w", err)
		}
	}
	return "", fmt.Errorf("invites: exhausted %d code generation attempts", codeMaxAttempts)
}
