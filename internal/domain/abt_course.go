package domain

import (
	"encoding/json"
	"time"
)

// AbtCourse 抗生素疗程（abt_courses 集合）
// 由临床录入弹窗创建/编辑；对账引擎只读 mrn/unit/room/status，
// 只写 unit/room/status/出院戳/备注
// 注意：集合内的 MRN 保留录入原文（未规范化），查找时必须先 canonicalize
type AbtCourse struct {
	ID  string `json:"id"`
	MRN string `json:"mrn"`

	// 位置冗余字段（随普查转移机会性同步）
	Unit string `json:"unit"`
	Room string `json:"room"`

	Drug       string `json:"drug"`
	Indication string `json:"indication"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`

	Status AbtStatus `json:"status"`
	Notes  string    `json:"notes"`

	DischargedAt    *time.Time `json:"discharged_at,omitempty"`
	DischargeReason string     `json:"discharge_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnmarshalJSON 兼容历史文档中的驼峰字段名（startDate/endDate 与
// start_date/end_date 并存）。内部只保留 snake_case 一套规范字段，
// 驼峰变体仅在存储边界被吸收，不进入对账逻辑。
func (c *AbtCourse) UnmarshalJSON(data []byte) error {
	type alias AbtCourse
	aux := struct {
		*alias
		LegacyStartDate string `json:"startDate"`
		LegacyEndDate   string `json:"endDate"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.StartDate == "" && aux.LegacyStartDate != "" {
		c.StartDate = aux.LegacyStartDate
	}
	if c.EndDate == "" && aux.LegacyEndDate != "" {
		c.EndDate = aux.LegacyEndDate
	}
	return nil
}
