package domain

import "time"

// Resident 在住人员领域模型（residents 集合）
// 主键为规范化 MRN（canonical MRN），每个 MRN 仅存在一条记录
// 记录从不物理删除：从普查名单消失时翻转 active_on_census=false
type Resident struct {
	// 主键（规范化 MRN，全大写、去标点）
	MRN string `json:"mrn"`

	// 基本信息（自由文本，来自普查粘贴内容）
	Name string `json:"name"`
	Unit string `json:"unit"`
	Room string `json:"room"`

	// 出生日期：原始字符串永远保留，解析值可空
	DOBRaw string     `json:"dob_raw"`
	DOB    *time.Time `json:"dob,omitempty"`

	// 行政状态标签（自由文本，如 "Active"/"Hold"）
	Status string `json:"status"`
	Payor  string `json:"payor"`

	// 普查状态
	// ActiveOnCensus=false 时 LastMissingCensusAt 必定非空
	// ActiveOnCensus=true 时 LastSeenCensusAt 为最近一次导入时间
	ActiveOnCensus      bool       `json:"active_on_census"`
	LastSeenCensusAt    *time.Time `json:"last_seen_census_at,omitempty"`
	LastMissingCensusAt *time.Time `json:"last_missing_census_at,omitempty"`
}

// Clone 深拷贝（对账引擎为纯函数，不得修改入参）
func (r *Resident) Clone() *Resident {
	cp := *r
	if r.DOB != nil {
		t := *r.DOB
		cp.DOB = &t
	}
	if r.LastSeenCensusAt != nil {
		t := *r.LastSeenCensusAt
		cp.LastSeenCensusAt = &t
	}
	if r.LastMissingCensusAt != nil {
		t := *r.LastMissingCensusAt
		cp.LastMissingCensusAt = &t
	}
	return &cp
}
