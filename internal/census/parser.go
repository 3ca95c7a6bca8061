package census

import (
	"fmt"
	"regexp"
	"strings"
)

// ImportRow 一行粘贴的普查文本解析出的候选住民（瞬态，不持久化）
// 所有字段永远存在（可能为空串）；校验结论由 Validator 填充
type ImportRow struct {
	Index int    // 源文本中的出现顺序（0 起）
	Key   string // 行键，供导入 UI 勾选（"row-<n>"）

	MRN          string // 原文 MRN
	CanonicalMRN string // 规范化身份键（"" 表示不可用）
	Name         string
	Unit         string
	Room         string
	DOBRaw       string
	Status       string
	Payor        string

	Verdict   Verdict
	Issues    []string
	Duplicate bool
	Selected  bool // 默认勾选策略的结果
}

var (
	// MRN 候选 token：可选 "MRN" 前缀，0-2 个字母 + 至少 3 位数字 + 可选字母后缀
	mrnTokenRe = regexp.MustCompile(`(?i)^(?:mrn[:#-]?)?[a-z]{0,2}[0-9]{3,}[a-z]?$`)

	// 日期 token：01/02/1940、1-2-40、1940-01-02 等
	dateTokenRe = regexp.MustCompile(`^\d{1,4}[/-]\d{1,2}[/-]\d{1,4}$`)

	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// ParseCensusText 把整块粘贴文本解析为有序的 ImportRow 列表
// 容错：无法识别的行被跳过或产出空字段行，绝不报错中断整批；
// 行序与源文本一致（后续处理的平局裁决依赖此顺序）
func ParseCensusText(text string) []*ImportRow {
	var rows []*ImportRow
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || isHeaderLine(line) {
			continue
		}
		row := parseLine(line, len(rows))
		if row == nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// parseLine 单行解析：标签字段优先（unit=A / dob: 01/02/1940），
// 其余字段按列序 MRN, Name, Unit, Room, DOB, Status, Payor 尽力填充
func parseLine(line string, index int) *ImportRow {
	fields := splitFields(line)
	if len(fields) == 0 {
		return nil
	}

	row := &ImportRow{Index: index, Key: fmt.Sprintf("row-%d", index)}

	var rest []string
	for _, f := range fields {
		if key, val, ok := splitLabeled(f); ok {
			assignLabeled(row, key, val)
			continue
		}
		rest = append(rest, f)
	}

	// MRN：取第一个形态匹配的 token（每行至多提取一次）
	if row.MRN == "" {
		if tok, remaining := takeFirst(rest, func(f string) bool {
			return !dateTokenRe.MatchString(f) && mrnTokenRe.MatchString(f) && CanonicalMRN(f) != ""
		}); tok != "" {
			row.MRN = tok
			rest = remaining
		}
	}

	// DOB：按形态在剩余 token 中识别（列序可能缺失时仍能命中）
	if row.DOBRaw == "" {
		if tok, remaining := takeFirst(rest, dateTokenRe.MatchString); tok != "" {
			row.DOBRaw = tok
			rest = remaining
		}
	}

	// 剩余 token 按列序补进尚未填充的字段
	for _, target := range []*string{&row.Name, &row.Unit, &row.Room, &row.Status, &row.Payor} {
		if len(rest) == 0 {
			break
		}
		if *target != "" {
			continue
		}
		*target = rest[0]
		rest = rest[1:]
	}

	if row.MRN == "" && row.Name == "" && row.Unit == "" && row.Room == "" &&
		row.DOBRaw == "" && row.Status == "" && row.Payor == "" {
		return nil
	}

	row.CanonicalMRN = CanonicalMRN(row.MRN)
	return row
}

// takeFirst 取出第一个满足条件的 token，返回它与剩余 token（原切片不动）
func takeFirst(fields []string, match func(string) bool) (string, []string) {
	for i, f := range fields {
		if match(f) {
			remaining := make([]string, 0, len(fields)-1)
			remaining = append(remaining, fields[:i]...)
			remaining = append(remaining, fields[i+1:]...)
			return f, remaining
		}
	}
	return "", fields
}

// splitFields 列切分：制表符优先，其次逗号（足够多时），再次连续空格
func splitFields(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	case strings.Count(line, ",") >= 3:
		parts = strings.Split(line, ",")
	case multiSpaceRe.MatchString(line):
		parts = multiSpaceRe.Split(line, -1)
	default:
		parts = strings.Fields(line)
	}

	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// 标签字段支持的键名
var labeledKeys = map[string]bool{
	"mrn": true, "name": true, "unit": true, "room": true,
	"dob": true, "status": true, "payor": true,
}

// splitLabeled 识别 "key=value" / "key: value" 形式的字段
func splitLabeled(field string) (string, string, bool) {
	idx := strings.IndexAny(field, "=:")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(field[:idx]))
	if !labeledKeys[key] {
		return "", "", false
	}
	return key, strings.TrimSpace(field[idx+1:]), true
}

func assignLabeled(row *ImportRow, key, val string) {
	switch key {
	case "mrn":
		if row.MRN == "" {
			row.MRN = val
		}
	case "name":
		row.Name = val
	case "unit":
		row.Unit = val
	case "room":
		row.Room = val
	case "dob":
		row.DOBRaw = val
	case "status":
		row.Status = val
	case "payor":
		row.Payor = val
	}
}

// isHeaderLine 表头行：含 MRN 与 Name 字样且整行无数字
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "mrn") || !strings.Contains(lower, "name") {
		return false
	}
	return !containsDigit(lower)
}
