package service

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/crewdeck/crewdeck/internal/authz"
	"github.com/crewdeck/crewdeck/internal/calc"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/sequence"
	"github.com/crewdeck/crewdeck/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetService keeps the asset register: tags, assignments and book values
// under both depreciation methods.
type AssetService struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

func NewAssetService(db *gorm.DB, seq *sequence.Allocator) *AssetService {
	return &AssetService{db: db, seq: seq}
}

// CreateAssetInput is the payload for registering an asset.
type CreateAssetInput struct {
	Name            string          `json:"name" validate:"required,min=1,max=200"`
	Category        string          `json:"category" validate:"max=100"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	ResidualValue   decimal.Decimal `json:"residual_value"`
	UsefulLifeYears int             `json:"useful_life_years" validate:"min=1,max=100"`
	PurchasedAt     time.Time       `json:"purchased_at" validate:"required"`
	// OrganizationID is honored for platform-level callers only.
	OrganizationID string `json:"organization_id"`
}

// AssetValuation is an asset with its current book values.
type AssetValuation struct {
	Asset                 model.Asset     `json:"asset"`
	YearsElapsed          int             `json:"years_elapsed"`
	StraightLineValue     decimal.Decimal `json:"straight_line_value"`
	DecliningBalanceValue decimal.Decimal `json:"declining_balance_value"`
}

// Create registers an asset and issues its tag.
func (s *AssetService) Create(ctx context.Context, actor authz.Actor, scope authz.Scope, input CreateAssetInput) (*model.Asset, error) {
	if err := authz.Require(actor, authz.CapManageAssets); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if !input.PurchasePrice.IsPositive() {
		return nil, apperr.Validation("purchase_price must be positive")
	}
	if input.ResidualValue.IsNegative() || input.ResidualValue.GreaterThan(input.PurchasePrice) {
		return nil, apperr.Validation("residual_value must be between zero and the purchase price")
	}
	orgID, err := targetOrg(scope, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&model.Organization{}, "id = ?", orgID).Error; err != nil {
		return nil, notFoundOr(err, "organization")
	}

	asset := &model.Asset{
		OrganizationID:  orgID,
		Name:            input.Name,
		Category:        input.Category,
		PurchasePrice:   input.PurchasePrice,
		ResidualValue:   input.ResidualValue,
		UsefulLifeYears: input.UsefulLifeYears,
		PurchasedAt:     input.PurchasedAt,
		Status:          "Available",
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := s.seq.NextTx(tx, sequence.AssetTag)
		if err != nil {
			return err
		}
		asset.Tag = tag
		return tx.Create(asset).Error
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// List returns assets visible in scope.
func (s *AssetService) List(ctx context.Context, scope authz.Scope) ([]model.Asset, error) {
	assets := []model.Asset{}
	err := scope.Filter(s.db.WithContext(ctx).Model(&model.Asset{})).
		Order("tag ASC").Find(&assets).Error
	return assets, err
}

func (s *AssetService) load(ctx context.Context, scope authz.Scope, id string) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "asset")
	}
	if !scope.Covers(asset.OrganizationID) {
		return nil, apperr.NotFound("asset")
	}
	return &asset, nil
}

// Get returns one asset with its book values as of now.
func (s *AssetService) Get(ctx context.Context, scope authz.Scope, id string) (*AssetValuation, error) {
	asset, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	years := calc.YearsElapsed(asset.PurchasedAt, time.Now().UTC())
	return &AssetValuation{
		Asset:                 *asset,
		YearsElapsed:          years,
		StraightLineValue:     calc.StraightLineValue(asset.PurchasePrice, asset.ResidualValue, asset.UsefulLifeYears, years),
		DecliningBalanceValue: calc.DecliningBalanceValue(asset.PurchasePrice, asset.UsefulLifeYears, years),
	}, nil
}

// Assign hands an available asset to an employee in the same organization.
func (s *AssetService) Assign(ctx context.Context, actor authz.Actor, scope authz.Scope, assetID, employeeID string) (*model.AssetAssignment, error) {
	asset, err := s.load(ctx, scope, assetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapManageAssets); err != nil {
		return nil, err
	}
	var emp model.Employee
	if err := s.db.WithContext(ctx).
		First(&emp, "id = ? AND organization_id = ?", employeeID, asset.OrganizationID).Error; err != nil {
		return nil, notFoundOr(err, "employee")
	}

	now := time.Now().UTC()
	assignment := &model.AssetAssignment{
		AssetID:    asset.ID,
		EmployeeID: emp.ID,
		AssignedBy: actor.UserID,
		Status:     string(workflow.AssignmentFlow.Initial),
		AssignedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The status swap doubles as the lock: only one caller can take
		// the asset out of Available.
		res := tx.Model(&model.Asset{}).
			Where("id = ? AND status = ?", asset.ID, "Available").
			Updates(map[string]any{"status": "Assigned", "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("asset is not available")
		}
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}
		return workflow.Record(tx, workflow.AssignmentFlow, assignment.ID, workflow.AssignmentFlow.Initial, actor.UserID, "assigned", now)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// Return takes the asset back and closes the open assignment.
func (s *AssetService) Return(ctx context.Context, actor authz.Actor, scope authz.Scope, assetID string) (*model.AssetAssignment, error) {
	asset, err := s.load(ctx, scope, assetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapManageAssets); err != nil {
		return nil, err
	}

	var assignment model.AssetAssignment
	err = s.db.WithContext(ctx).
		First(&assignment, "asset_id = ? AND status = ?", asset.ID, "Assigned").Error
	if err != nil {
		return nil, notFoundOr(err, "asset assignment")
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Apply(tx, workflow.AssignmentFlow, assignment.ID,
			workflow.Status(assignment.Status), "Returned", actor.UserID, "", now); err != nil {
			return err
		}
		if err := tx.Model(&assignment).Update("returned_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&model.Asset{}).Where("id = ?", asset.ID).
			Updates(map[string]any{"status": "Available", "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	assignment.Status = "Returned"
	assignment.ReturnedAt = &now
	return &assignment, nil
}

// Assignments returns an asset's assignment history, newest last.
func (s *AssetService) Assignments(ctx context.Context, actor authz.Actor, scope authz.Scope, assetID string) ([]model.AssetAssignment, error) {
	asset, err := s.load(ctx, scope, assetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CapManageAssets); err != nil {
		return nil, err
	}
	assignments := []model.AssetAssignment{}
	err = s.db.WithContext(ctx).Where("asset_id = ?", asset.ID).
		Order("assigned_at ASC, id ASC").Find(&assignments).Error
	return assignments, err
}
