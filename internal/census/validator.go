package census

import (
	"fmt"
	"strings"
)

// Verdict 行级校验结论
type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictWarning Verdict = "warning"
	VerdictError   Verdict = "error"
)

// ValidatorConfig 行校验配置
type ValidatorConfig struct {
	// Units 单元白名单（不区分大小写）
	Units []string
	// DuplicateSeverity 批内重复 MRN 的级别（error 或 warning，默认 error）
	DuplicateSeverity Verdict
}

// ValidateBatch 对整批行做校验，就地填充 Verdict/Issues/Duplicate/Selected
// 重复集必须先对整批计算完再逐行校验：批内重复检测与行序无关，
// 但必须看到完整批次；重复标记落在后出现的行上
// 纯函数（只依赖行本身 + 整批重复集），无其它副作用
func ValidateBatch(rows []*ImportRow, cfg ValidatorConfig) {
	dupSeverity := cfg.DuplicateSeverity
	if dupSeverity != VerdictWarning {
		dupSeverity = VerdictError
	}

	units := make(map[string]bool, len(cfg.Units))
	for _, u := range cfg.Units {
		units[strings.ToUpper(strings.TrimSpace(u))] = true
	}

	// 第一遍：整批重复集（按规范化 MRN，首个出现不算重复）
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.CanonicalMRN == "" {
			continue
		}
		seen[row.CanonicalMRN]++
		if seen[row.CanonicalMRN] > 1 {
			row.Duplicate = true
		}
	}

	// 第二遍：逐行结论
	for _, row := range rows {
		row.Verdict = VerdictValid
		row.Issues = nil

		if row.CanonicalMRN == "" {
			addIssue(row, VerdictError, "missing or malformed MRN")
		}
		if row.Unit == "" {
			addIssue(row, VerdictError, "missing unit")
		} else if !units[strings.ToUpper(strings.TrimSpace(row.Unit))] {
			addIssue(row, VerdictError, fmt.Sprintf("unit %q not in whitelist", row.Unit))
		}
		if row.Duplicate {
			addIssue(row, dupSeverity, "duplicate MRN in batch")
		}

		if row.Room == "" {
			addIssue(row, VerdictWarning, "missing room")
		}
		if row.Name == "" {
			addIssue(row, VerdictWarning, "missing name")
		}
		if row.DOBRaw == "" {
			addIssue(row, VerdictWarning, "missing date of birth")
		}

		// 默认勾选策略：非 error、非批内重复的后续出现，且至少带 room 或 dob
		// （重复行无论级别都不默认勾选，同一规范化 MRN 至多保留首个出现）
		row.Selected = row.Verdict != VerdictError && !row.Duplicate &&
			(row.Room != "" || row.DOBRaw != "")
	}
}

// addIssue 记录问题并按严重度升级结论（error 覆盖 warning 覆盖 valid）
func addIssue(row *ImportRow, severity Verdict, msg string) {
	row.Issues = append(row.Issues, msg)
	if severity == VerdictError || (severity == VerdictWarning && row.Verdict == VerdictValid) {
		row.Verdict = severity
	}
}
