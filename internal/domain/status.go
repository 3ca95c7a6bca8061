package domain

// 各追踪记录的生命周期状态以显式有限状态机建模：
// 每类追踪有自己的状态枚举 + 允许迁移表，级联出院协调器据此保证
// 永远不会把已终止的记录重新"激活"或覆盖人工出院原因。

// AbtStatus 抗生素疗程状态
type AbtStatus string

const (
	AbtActive       AbtStatus = "active"
	AbtCompleted    AbtStatus = "completed"
	AbtDiscontinued AbtStatus = "discontinued"
)

// IsoStatus 隔离病例状态（与历史数据保持首字母大写的字符串形态）
type IsoStatus string

const (
	IsoActive     IsoStatus = "Active"
	IsoResolved   IsoStatus = "Resolved"
	IsoDischarged IsoStatus = "Discharged"
)

// VaxStatus 疫苗接种记录状态
type VaxStatus string

const (
	VaxPending      VaxStatus = "pending"
	VaxAdministered VaxStatus = "administered"
	VaxDeclined     VaxStatus = "declined"
	VaxDischarged   VaxStatus = "discharged"
)

// 出院原因（机器可读，区分普查驱动的自动关闭与临床人工出院）
const (
	DischargeReasonCensusAuto = "census_auto"
	DischargeReasonManual     = "manual"
)

// abtTransitions 允许迁移表：终态无出边
var abtTransitions = map[AbtStatus][]AbtStatus{
	AbtActive: {AbtCompleted, AbtDiscontinued},
}

var isoTransitions = map[IsoStatus][]IsoStatus{
	IsoActive: {IsoResolved, IsoDischarged},
}

var vaxTransitions = map[VaxStatus][]VaxStatus{
	VaxPending: {VaxAdministered, VaxDeclined, VaxDischarged},
}

// IsTerminal 是否为终态（不再发生任何自动迁移）
func (s AbtStatus) IsTerminal() bool { return len(abtTransitions[s]) == 0 }
func (s IsoStatus) IsTerminal() bool { return len(isoTransitions[s]) == 0 }
func (s VaxStatus) IsTerminal() bool { return len(vaxTransitions[s]) == 0 }

// CanTransition 是否允许从当前状态迁移到 next
func (s AbtStatus) CanTransition(next AbtStatus) bool {
	for _, t := range abtTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s IsoStatus) CanTransition(next IsoStatus) bool {
	for _, t := range isoTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s VaxStatus) CanTransition(next VaxStatus) bool {
	for _, t := range vaxTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
