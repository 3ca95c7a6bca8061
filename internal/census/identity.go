package census

import "strings"

// CanonicalMRN 把原始 MRN 字符串规范化为唯一身份键
// 规则：去首尾空白 → 全大写 → 去掉所有非字母数字字符 → 去掉 "MRN" 前缀
// 返回 "" 表示没有可用的身份内容（至少要包含一位数字）
// 所有住民查找、合并、掉队检测只用规范化形式，避免两次导入之间
// 因格式漂移（空格、连字符、大小写）产生重复住民
func CanonicalMRN(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	var b strings.Builder
	hasDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	if !hasDigit {
		return ""
	}

	out := strings.TrimPrefix(b.String(), "MRN")
	if out == "" || !containsDigit(out) {
		return ""
	}
	return out
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
