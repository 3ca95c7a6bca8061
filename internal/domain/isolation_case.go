package domain

import "time"

// IsolationCase 隔离病例（isolation_cases 集合）
// MRN 保留录入原文，查找时先 canonicalize
type IsolationCase struct {
	ID  string `json:"id"`
	MRN string `json:"mrn"`

	Unit string `json:"unit"`
	Room string `json:"room"`

	// 隔离措施类型（如 Contact/Droplet/Enhanced Barrier）与病原体
	Precaution string `json:"precaution"`
	Organism   string `json:"organism"`
	OnsetDate  string `json:"onset_date"`

	Status IsoStatus `json:"status"`
	Notes  string    `json:"notes"`

	DischargedAt    *time.Time `json:"discharged_at,omitempty"`
	DischargeReason string     `json:"discharge_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
