// Package catalog is the authorization gate binding subscription plans to the
// models they may use. Authorization is purely data-driven: a plan may use a
// model iff a plan_models grant row links the two.
package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/db/models"
)

var (
	// ErrModelNotFound means no catalog entry has the requested id.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelNotAllowed means the model exists but the account's plan has no
	// grant for it. Kept distinct from ErrModelNotFound so callers can answer
	// 400 vs 403.
	ErrModelNotAllowed = errors.New("model not allowed on current plan")
)

// ListAllowed returns the models reachable through a plan grant for the
// account's current plan, ordered by id ascending.
//
// All queries run on the caller-supplied transaction scope.
func ListAllowed(tx *gorm.DB, accountID uint) ([]models.Model, error) {
	var allowed []models.Model
	err := tx.
		Joins("JOIN plan_models ON plan_models.model_id = models.id").
		Joins("JOIN users ON users.plan_id = plan_models.plan_id").
		Where("users.id = ?", accountID).
		Order("models.id ASC").
		Find(&allowed).Error
	if err != nil {
		return nil, fmt.Errorf("list allowed models: %w", err)
	}
	return allowed, nil
}

// ValidateSelection checks that the account may open a session on the given
// model. It fails with ErrModelNotFound when the id matches no catalog entry
// and with ErrModelNotAllowed when the entry exists but the account's plan
// carries no grant. On success the resolved model is returned so the caller
// does not have to re-read it.
func ValidateSelection(tx *gorm.DB, accountID, modelID uint) (*models.Model, error) {
	var model models.Model
	if err := tx.First(&model, modelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("load model %d: %w", modelID, err)
	}

	var granted int64
	err := tx.Model(&models.PlanModel{}).
		Joins("JOIN users ON users.plan_id = plan_models.plan_id").
		Where("users.id = ? AND plan_models.model_id = ?", accountID, modelID).
		Count(&granted).Error
	if err != nil {
		return nil, fmt.Errorf("check plan grant: %w", err)
	}
	if granted == 0 {
		return nil, ErrModelNotAllowed
	}

	return &model, nil
}

// ListPlans returns every plan together with a flag marking the account's
// current one.
func ListPlans(tx *gorm.DB, accountID uint) ([]PlanEntry, error) {
	var user models.User
	if err := tx.First(&user, accountID).Error; err != nil {
		return nil, fmt.Errorf("load account %d: %w", accountID, err)
	}

	var plans []models.Plan
	if err := tx.Order("id ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	entries := make([]PlanEntry, 0, len(plans))
	for _, p := range plans {
		entries = append(entries, PlanEntry{Plan: p, IsCurrent: p.ID == user.PlanID})
	}
	return entries, nil
}

// PlanEntry is a plan annotated with whether it is the caller's current plan.
type PlanEntry struct {
	Plan      models.Plan
	IsCurrent bool
}
