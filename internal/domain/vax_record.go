package domain

import (
	"encoding/json"
	"time"
)

// VaxRecord 疫苗接种记录（vax_records 集合）
// MRN 保留录入原文，查找时先 canonicalize
type VaxRecord struct {
	ID  string `json:"id"`
	MRN string `json:"mrn"`

	Unit string `json:"unit"`
	Room string `json:"room"`

	Vaccine  string `json:"vaccine"`
	DoseDate string `json:"dose_date"`

	Status VaxStatus `json:"status"`
	Notes  string    `json:"notes"`

	DischargedAt    *time.Time `json:"discharged_at,omitempty"`
	DischargeReason string     `json:"discharge_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnmarshalJSON 兼容历史文档中的驼峰日期字段（doseDate）
func (v *VaxRecord) UnmarshalJSON(data []byte) error {
	type alias VaxRecord
	aux := struct {
		*alias
		LegacyDoseDate string `json:"doseDate"`
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if v.DoseDate == "" && aux.LegacyDoseDate != "" {
		v.DoseDate = aux.LegacyDoseDate
	}
	return nil
}
