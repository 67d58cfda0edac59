package model

import (
	"time"

	"github.com/google/uuid"
)

// ModelPricing holds per-token prices in micro units of the billing currency.
type ModelPricing struct {
	ID                     string
	ModelName              string
	InputTokenPriceMicros  int64
	OutputTokenPriceMicros int64
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func NewModelPricing(modelName string, inputPriceMicros, outputPriceMicros int64, active bool) *ModelPricing {
	now := time.Now()
	return &ModelPricing{
		ID:                     uuid.NewString(),
		ModelName:              modelName,
		InputTokenPriceMicros:  inputPriceMicros,
		OutputTokenPriceMicros: outputPriceMicros,
		Active:                 active,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// Cost prices a usage in micros.
func (p *ModelPricing) Cost(u TokenUsage) int64 {
	if p == nil {
		return 0
	}
	return int64(u.InputTokens)*p.InputTokenPriceMicros + int64(u.OutputTokens)*p.OutputTokenPriceMicros
}
