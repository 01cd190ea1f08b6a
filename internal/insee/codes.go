// 包 insee：INSEE 行政区划编码的拆分与归一化工具
// 背景：DVF 数据中的市镇编码由省编码与市镇序号拼接而成，科西嘉（2A/2B）与
// 海外省（97x/98x）的位数规则不同；上游聚合服务与前端选择器均依赖同一套规则。
package insee

import "strings"

// SplitCommuneCode：将完整市镇编码拆为省编码与市镇序号
// 约束：序号部分去除前导零（全零时保留单个 "0"）；空输入返回两个空串。
func SplitCommuneCode(code string) (dept string, rest string) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return "", ""
	}
	switch {
	case strings.HasPrefix(c, "2A") || strings.HasPrefix(c, "2B"):
		dept, rest = c[:2], c[2:]
	case (strings.HasPrefix(c, "97") || strings.HasPrefix(c, "98")) && len(c) >= 4:
		dept, rest = c[:3], c[3:]
	default:
		if len(c) < 2 {
			return c, ""
		}
		dept, rest = c[:2], c[2:]
	}
	rest = strings.TrimLeft(rest, "0")
	if rest == "" {
		rest = "0"
	}
	return dept, rest
}

// NormalizeCommuneCode：由省编码与市镇序号重建标准完整编码
// 背景：聚合接口按省/序号两列返回，渲染与字典查询需要统一的完整编码作为键。
// 约束：任一部分为空时返回空串，调用方据此跳过该行。
func NormalizeCommuneCode(deptCode, communePart string) string {
	dept := strings.ToUpper(strings.TrimSpace(deptCode))
	commune := strings.TrimSpace(communePart)
	if dept == "" || commune == "" {
		return ""
	}
	switch {
	case dept == "2A" || dept == "2B":
		commune = zfill(commune, 3)
	case strings.HasPrefix(dept, "97") || strings.HasPrefix(dept, "98"):
		commune = zfill(commune, 2)
	default:
		commune = zfill(commune, 3)
		dept = zfill(dept, 2)
	}
	return dept + commune
}

// CommuneInDepartment：判断完整市镇编码是否归属给定省
// 背景：选择器的级联约束要求 commune 仅在属于当前 department 时有效。
func CommuneInDepartment(communeCode, deptCode string) bool {
	if communeCode == "" || deptCode == "" {
		return false
	}
	dept, _ := SplitCommuneCode(communeCode)
	return strings.EqualFold(dept, strings.TrimSpace(deptCode))
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
