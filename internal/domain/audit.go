package domain

import "time"

// AuditAction 审计动作类型
type AuditAction string

const (
	AuditCensusImport   AuditAction = "census_import"
	AuditAbxDischarge   AuditAction = "abx_discharge"
	AuditIPDischarge    AuditAction = "ip_discharge"
	AuditVaxDischarge   AuditAction = "vax_discharge"
	AuditLocationUpdate AuditAction = "location_update"
)

// AuditEntry 审计日志条目（audit_log 集合）
// 只追加、按插入顺序排列；引擎从不修改或删除已有条目
// 每个高层操作产生一条（整次导入一条，而非每行一条）
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	Summary   string      `json:"summary"`
	EntityTag string      `json:"entity_tag"`
	CreatedAt time.Time   `json:"created_at"`
}
