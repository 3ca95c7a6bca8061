package domain

import "time"

// Document 整库文档：持久化原语是整文档 load/save（无部分写入）
// 对账流水线在内存里构建完整的新文档，成功后一次性落盘
type Document struct {
	Residents      []*Resident      `json:"residents"`
	AbtCourses     []*AbtCourse     `json:"abt_courses"`
	IsolationCases []*IsolationCase `json:"isolation_cases"`
	VaxRecords     []*VaxRecord     `json:"vax_records"`
	AuditLog       []AuditEntry     `json:"audit_log"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument 创建空文档（各集合预置为空切片，避免 JSON 里出现 null）
func NewDocument() *Document {
	return &Document{
		Residents:      []*Resident{},
		AbtCourses:     []*AbtCourse{},
		IsolationCases: []*IsolationCase{},
		VaxRecords:     []*VaxRecord{},
		AuditLog:       []AuditEntry{},
	}
}

// AppendAudit 追加一条审计条目（append-only，调用方负责生成 ID 与时间戳）
func (d *Document) AppendAudit(e AuditEntry) {
	d.AuditLog = append(d.AuditLog, e)
}

// ResidentByMRN 按规范化 MRN 查找住民
func (d *Document) ResidentByMRN(canonical string) *Resident {
	for _, r := range d.Residents {
		if r.MRN == canonical {
			return r
		}
	}
	return nil
}
