package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/store"
	"go.uber.org/zap"
)

var (
	ErrTenantNameRequired = errors.New("tenant name is required")
	ErrTenantConflict     = errors.New("tenant already exists")
)

// TenantService bootstraps tenants together with their credit ledger.
type TenantService struct {
	tenants          domain.TenantStore
	credits          *CreditService
	defaultAllotment int
	logger           *zap.Logger
}

func NewTenantService(tenants domain.TenantStore, credits *CreditService, defaultAllotment int, logger *zap.Logger) *TenantService {
	return &TenantService{tenants: tenants, credits: credits, defaultAllotment: defaultAllotment, logger: logger}
}

// Create stores t, whose APIKeyHash the caller has already set, and
// provisions a ledger with the default monthly allotment.
func (s *TenantService) Create(ctx context.Context, t *domain.Tenant) (*domain.CreditLedger, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, ErrTenantNameRequired
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrTenantConflict
		}
		return nil, err
	}

	ledger, err := s.credits.Provision(ctx, t.ID, ProvisionInput{MonthlyAllotment: s.defaultAllotment})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tenant created",
		zap.String("tenant_id", t.ID.String()),
		zap.Int("monthly_allotment", ledger.MonthlyAllotment))
	return ledger, nil
}
