package db

import (
	"log"

	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/db/models"
)

// Plan IDs fixed by the seed. New users are provisioned onto the free plan.
const (
	PlanFree uint = 1
	PlanPro  uint = 2
)

// Seed upserts the reference data inside one transaction. It is idempotent:
// existing rows are updated in place so catalog fixes ship with a restart,
// while user-owned tables are never touched.
func Seed(database *gorm.DB) error {
	return database.Transaction(func(tx *gorm.DB) error {
		plans := []models.Plan{
			{ID: PlanFree, Name: "Free", Description: "Basic features with standard models", Price: 0},
			{ID: PlanPro, Name: "Pro", Description: "Every model, including the premium ones", Price: 500},
		}
		for _, p := range plans {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}

		catalog := []models.Model{
			{ID: 1, Name: "Gemini 2.0 Flash", ModelID: "gemini-2.0-flash", Provider: "gemini", Color: "#4796E3", IsDefault: true},
			{ID: 2, Name: "Gemini 2.5 Pro", ModelID: "gemini-2.5-pro", Provider: "gemini", Color: "#9168C0"},
			{ID: 3, Name: "Llama 3.3 70B", ModelID: "llama-3.3-70b-versatile", Provider: "groq", Color: "#F55036"},
			{ID: 4, Name: "GPT-OSS 120B", ModelID: "openai/gpt-oss-120b", Provider: "groq", Color: "#10A37F"},
		}
		for _, m := range catalog {
			if err := tx.Save(&m).Error; err != nil {
				return err
			}
		}

		grants := []models.PlanModel{
			{PlanID: PlanFree, ModelID: 1},
			{PlanID: PlanFree, ModelID: 3},
			{PlanID: PlanPro, ModelID: 1},
			{PlanID: PlanPro, ModelID: 2},
			{PlanID: PlanPro, ModelID: 3},
			{PlanID: PlanPro, ModelID: 4},
		}
		for _, g := range grants {
			if err := tx.Where(models.PlanModel{PlanID: g.PlanID, ModelID: g.ModelID}).
				FirstOrCreate(&g).Error; err != nil {
				return err
			}
		}

		log.Printf("seeded reference data: %d plans, %d models, %d grants",
			len(plans), len(catalog), len(grants))
		return nil
	})
}
