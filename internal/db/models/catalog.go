package models

// Plan is a subscription tier. Immutable reference data, seeded on startup.
type Plan struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Price       int `gorm:"not null"` // monthly, in the smallest currency unit
}

// Model is a catalog entry for a selectable LLM.
// ModelID is the provider-side identifier (e.g. "gemini-2.0-flash"),
// Provider the tag the adapter registry is keyed by ("gemini" | "groq").
type Model struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	ModelID   string `gorm:"not null"`
	Provider  string `gorm:"not null"`
	Color     string
	IsDefault bool `gorm:"default:false"`
}

// PlanModel links a plan to a model it may use. The existence of the row is
// the sole authorization fact the catalog gate checks.
type PlanModel struct {
	PlanID  uint `gorm:"primaryKey"`
	ModelID uint `gorm:"primaryKey"`
}
