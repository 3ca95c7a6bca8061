package census

import (
	"time"

	"ictrack/internal/domain"
)

// LocationChange 住民转移（单元/房间变更）
type LocationChange struct {
	MRN     string `json:"mrn"` // 规范化 MRN
	NewUnit string `json:"new_unit"`
	NewRoom string `json:"new_room"`
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	// Residents 合并后的完整住民集（既有顺序保持，新增按行序追加）
	Residents []*domain.Resident
	// Dropped 本次掉队（从普查消失）的规范化 MRN，按既有住民顺序
	Dropped []string
	// LocationChanges 既有住民的单元/房间实际变化
	LocationChanges []LocationChange

	Added   int // 新建住民数
	Updated int // 命中既有住民数
}

// Reconcile 把用户勾选后的行集合与既有住民集做对账合并
// 纯函数：不修改入参（住民逐条深拷贝）；幂等：同一输入同一 now
// 重跑第二遍除时间戳刷新外不再产生任何状态变化
//
// 算法：
//  1. 逐行 upsert：新行字段非空则取新值，否则保留旧值（字段永不
//     因新行缺失而回退为空）；active_on_census=true、last_seen=now；
//     last_missing 保留不清除（作为历史缺勤证据）
//  2. 收集本次触达的规范化 MRN（seen 集）
//  3. 不在 seen 集且当前 active 的既有住民：翻转 inactive、
//     last_missing=now，记入 Dropped
//  4. 命中既有住民且 unit/room 实际变化的：记录 LocationChange
//
// 住民从不删除；身份不可解析的行已在上游被排除（CanonicalMRN 为空的行跳过）
func Reconcile(existing []*domain.Resident, rows []*ImportRow, now time.Time) ReconcileResult {
	result := ReconcileResult{}

	merged := make([]*domain.Resident, 0, len(existing)+len(rows))
	index := make(map[string]*domain.Resident, len(existing))
	for _, r := range existing {
		cp := r.Clone()
		merged = append(merged, cp)
		index[cp.MRN] = cp
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.CanonicalMRN == "" {
			continue
		}

		prev, ok := index[row.CanonicalMRN]
		if !ok {
			r := &domain.Resident{
				MRN:              row.CanonicalMRN,
				Name:             row.Name,
				Unit:             row.Unit,
				Room:             row.Room,
				DOBRaw:           row.DOBRaw,
				Status:           row.Status,
				Payor:            row.Payor,
				ActiveOnCensus:   true,
				LastSeenCensusAt: &now,
			}
			if row.DOBRaw != "" {
				r.DOB = parseDOB(row.DOBRaw)
			}
			merged = append(merged, r)
			index[r.MRN] = r
			seen[r.MRN] = true
			result.Added++
			continue
		}

		// 同批同一 MRN 出现多次时只按第一次合并（后续重复行已被校验标记）
		if seen[prev.MRN] {
			continue
		}

		prevUnit, prevRoom := prev.Unit, prev.Room
		mergeField(&prev.Name, row.Name)
		mergeField(&prev.Unit, row.Unit)
		mergeField(&prev.Room, row.Room)
		mergeField(&prev.Status, row.Status)
		mergeField(&prev.Payor, row.Payor)
		if row.DOBRaw != "" {
			prev.DOBRaw = row.DOBRaw
			if t := parseDOB(row.DOBRaw); t != nil {
				prev.DOB = t
			}
		}
		prev.ActiveOnCensus = true
		ts := now
		prev.LastSeenCensusAt = &ts
		// last_missing 不清除：保留既往缺勤的历史证据

		seen[prev.MRN] = true
		result.Updated++

		if prev.Unit != prevUnit || prev.Room != prevRoom {
			result.LocationChanges = append(result.LocationChanges, LocationChange{
				MRN:     prev.MRN,
				NewUnit: prev.Unit,
				NewRoom: prev.Room,
			})
		}
	}

	// 掉队检测：既有 active 住民未被本批触达
	for _, r := range merged {
		if seen[r.MRN] || !r.ActiveOnCensus {
			continue
		}
		r.ActiveOnCensus = false
		ts := now
		r.LastMissingCensusAt = &ts
		result.Dropped = append(result.Dropped, r.MRN)
	}

	result.Residents = merged
	return result
}

// mergeField 新值非空才覆盖
func mergeField(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// parseDOB 尽力解析出生日期；解析失败返回 nil（原始串始终另行保留）
func parseDOB(raw string) *time.Time {
	layouts := []string{"01/02/2006", "1/2/2006", "01/02/06", "1/2/06", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
