package entities

import (
	"database/sql/driver"
	"encoding/json"
)

// RiskLevel grades the overall deal risk of a transcript
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// RiskFactor is a single contributor to the overall risk grade
type RiskFactor struct {
	Label    string `json:"label"`
	Severity string `json:"severity,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

// RiskSummary is the structured deal-risk result produced by the risk
// assessment model over a completed transcript
type RiskSummary struct {
	RiskLevel RiskLevel    `json:"risk_level"`
	Score     float64      `json:"score,omitempty"`
	Factors   []RiskFactor `json:"factors,omitempty"`
	Summary   string       `json:"summary"`
}

// Scan implements sql.Scanner interface for GORM
func (s *RiskSummary) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &s)
}

// Value implements driver.Valuer interface for GORM
func (s RiskSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}
