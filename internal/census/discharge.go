package census

import (
	"fmt"
	"time"

	"ictrack/internal/domain"
)

// DischargeCounts 级联关闭计数（用于用户反馈）
type DischargeCounts struct {
	Abt       int `json:"abt_closed"`
	Isolation int `json:"ip_closed"`
	Vax       int `json:"vax_closed"`
}

// Total 三类合计
func (c DischargeCounts) Total() int { return c.Abt + c.Isolation + c.Vax }

// AutoDischarge 级联出院：对每个掉队住民，把其名下所有未终止的
// 追踪记录迁移到"普查出院"终态，并盖出院时间戳与机器可读原因
// （census_auto，区别于临床人工出院）
//
// 追踪集合里的 MRN 是录入原文（存储时未规范化），匹配前先 canonicalize。
// 已处于终态的记录不碰（幂等，且不覆盖人工出院原因）。
func AutoDischarge(doc *domain.Document, dropped []string, now time.Time) DischargeCounts {
	counts := DischargeCounts{}
	if len(dropped) == 0 {
		return counts
	}

	droppedSet := make(map[string]bool, len(dropped))
	for _, mrn := range dropped {
		droppedSet[mrn] = true
	}

	note := fmt.Sprintf("Auto-closed %s: resident no longer on census", now.Format("2006-01-02"))

	for _, c := range doc.AbtCourses {
		if !droppedSet[CanonicalMRN(c.MRN)] || c.Status.IsTerminal() {
			continue
		}
		if !c.Status.CanTransition(domain.AbtDiscontinued) {
			continue
		}
		c.Status = domain.AbtDiscontinued
		stampDischarge(&c.DischargedAt, &c.DischargeReason, &c.Notes, now, note)
		c.UpdatedAt = now
		counts.Abt++
	}

	for _, ip := range doc.IsolationCases {
		if !droppedSet[CanonicalMRN(ip.MRN)] || ip.Status.IsTerminal() {
			continue
		}
		if !ip.Status.CanTransition(domain.IsoDischarged) {
			continue
		}
		ip.Status = domain.IsoDischarged
		stampDischarge(&ip.DischargedAt, &ip.DischargeReason, &ip.Notes, now, note)
		ip.UpdatedAt = now
		counts.Isolation++
	}

	for _, v := range doc.VaxRecords {
		if !droppedSet[CanonicalMRN(v.MRN)] || v.Status.IsTerminal() {
			continue
		}
		if !v.Status.CanTransition(domain.VaxDischarged) {
			continue
		}
		v.Status = domain.VaxDischarged
		stampDischarge(&v.DischargedAt, &v.DischargeReason, &v.Notes, now, note)
		v.UpdatedAt = now
		counts.Vax++
	}

	return counts
}

// stampDischarge 盖出院戳并追加一行人类可读备注
func stampDischarge(at **time.Time, reason *string, notes *string, now time.Time, note string) {
	ts := now
	*at = &ts
	*reason = domain.DischargeReasonCensusAuto
	if *notes == "" {
		*notes = note
	} else {
		*notes = *notes + "\n" + note
	}
}

// ApplyLocationChanges 把对账发现的转移同步到仍活跃的追踪记录的
// 冗余 unit/room 字段，避免转移（而非出院）后追踪界面显示过期房号
// 终态记录不更新；返回被更新的记录数
func ApplyLocationChanges(doc *domain.Document, changes []LocationChange, now time.Time) int {
	if len(changes) == 0 {
		return 0
	}

	byMRN := make(map[string]LocationChange, len(changes))
	for _, ch := range changes {
		byMRN[ch.MRN] = ch
	}

	updated := 0
	for _, c := range doc.AbtCourses {
		if ch, ok := byMRN[CanonicalMRN(c.MRN)]; ok && !c.Status.IsTerminal() {
			c.Unit, c.Room = ch.NewUnit, ch.NewRoom
			c.UpdatedAt = now
			updated++
		}
	}
	for _, ip := range doc.IsolationCases {
		if ch, ok := byMRN[CanonicalMRN(ip.MRN)]; ok && !ip.Status.IsTerminal() {
			ip.Unit, ip.Room = ch.NewUnit, ch.NewRoom
			ip.UpdatedAt = now
			updated++
		}
	}
	for _, v := range doc.VaxRecords {
		if ch, ok := byMRN[CanonicalMRN(v.MRN)]; ok && !v.Status.IsTerminal() {
			v.Unit, v.Room = ch.NewUnit, ch.NewRoom
			v.UpdatedAt = now
			updated++
		}
	}
	return updated
}
