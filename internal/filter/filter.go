// 包 filter：过滤状态（省/市镇选择）与封闭的用户意图集合
// 背景：把散落的控件回调收敛为三种意图与一个状态转移函数，
// 转移结果以 Effect 描述需要触发的级联动作，由编排循环执行。
// 约束：状态只在编排循环中被转移函数修改；下游组件只读快照。
package filter

import (
	"fmt"
	"net/url"
	"strings"

	"dvf-dashboard/internal/insee"
)

// IntentKind：用户意图类别（封闭集合）
type IntentKind string

const (
	SelectDepartment IntentKind = "select_department"
	SelectCommune    IntentKind = "select_commune"
	SubmitFilters    IntentKind = "submit_filters"
)

// Intent：一次用户输入；Code 为空表示清除该级选择
type Intent struct {
	Kind IntentKind
	Code string
}

// Selection：过滤状态的不可变快照
type Selection struct {
	Department string
	Commune    string
}

// Params：转为查询参数集；空值省略，表示全国范围
func (s Selection) Params() url.Values {
	v := url.Values{}
	if s.Department != "" {
		v.Set("department", s.Department)
	}
	if s.Commune != "" {
		v.Set("commune", s.Commune)
	}
	return v
}

// Effect：一次状态转移要求编排层执行的级联动作
type Effect struct {
	// ResetCommuneOptions：立即禁用市镇选择器并重置为默认项
	ResetCommuneOptions bool
	// FetchCommuneOptions：为新选中的省抓取市镇选项
	FetchCommuneOptions bool
	// Refetch：重新抓取地图与图表视图
	Refetch bool
}

// State：当前选择；零值即页面加载时的空选择
type State struct {
	department string
	commune    string
}

// Selection：返回当前选择的只读快照
func (s *State) Selection() Selection {
	return Selection{Department: s.department, Commune: s.commune}
}

// Apply：单一状态转移函数
// 约束：选择新省强制清空市镇并重置选项集；市镇必须归属当前省；
// 非法意图不改变状态、不产生任何动作。
func (s *State) Apply(it Intent) (Effect, error) {
	switch it.Kind {
	case SelectDepartment:
		code := normalizeCode(it.Code)
		s.department = code
		s.commune = ""
		return Effect{
			ResetCommuneOptions: true,
			FetchCommuneOptions: code != "",
			Refetch:             true,
		}, nil
	case SelectCommune:
		code := canonicalCommuneCode(it.Code)
		if code != "" && s.department != "" && !insee.CommuneInDepartment(code, s.department) {
			return Effect{}, fmt.Errorf("commune %s does not belong to department %s", code, s.department)
		}
		s.commune = code
		return Effect{Refetch: true}, nil
	case SubmitFilters:
		return Effect{Refetch: true}, nil
	default:
		return Effect{}, fmt.Errorf("unknown intent %q", it.Kind)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// canonicalCommuneCode：把控件传来的市镇编码重建为标准补零形态
// 背景：部分数据源的序号列不带前导零（"2A4"），下游缓存键与归属校验
// 都要求与聚合服务一致的完整编码。
func canonicalCommuneCode(code string) string {
	c := normalizeCode(code)
	if c == "" {
		return ""
	}
	dept, rest := insee.SplitCommuneCode(c)
	return insee.NormalizeCommuneCode(dept, rest)
}
