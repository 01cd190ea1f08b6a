// 包 present：每个可视面的呈现状态机与共享 KPI 面板
// 背景：地图、四张图表卡与 KPI 部件共用同一套 loading→{ready,empty,error} 状态机；
// 进入动作负责占位文案与陈旧内容的清除，渲染内容本身由调用方闭包完成。
package present

import "dvf-dashboard/internal/logger"

// State：卡片呈现状态
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateError   State = "error"
)

// PlaceholderSurface：占位呈现能力（由外部渲染面实现）
type PlaceholderSurface interface {
	ShowLoading(msg string)
	ShowEmpty(msg string)
	ShowError(msg string)
	// ClearContent：清除已渲染的可视内容（进入 error 态时调用）
	ClearContent()
}

// Card：一个独立可视面的状态机
// 约束：合法转移仅有 loading→{ready,empty,error} 与任意终态→loading；
// permanent 置位后（渲染能力缺失）卡片固定为 error，不再响应任何转移。
type Card struct {
	name      string
	state     State
	surface   PlaceholderSurface
	permanent bool
}

func NewCard(name string, surface PlaceholderSurface) *Card {
	return &Card{name: name, state: StateLoading, surface: surface}
}

// Begin：新一代抓取发起时进入 loading，压制陈旧内容
func (c *Card) Begin(msg string) {
	if c.permanent {
		return
	}
	c.state = StateLoading
	c.surface.ShowLoading(msg)
}

// Ready：当前代结果非空，执行渲染闭包并进入 ready
func (c *Card) Ready(render func()) {
	if !c.fromLoading(StateReady) {
		return
	}
	render()
}

// Empty：当前代结果为零条目；占位保留语境文案（如范围标签）
func (c *Card) Empty(msg string) {
	if !c.fromLoading(StateEmpty) {
		return
	}
	c.surface.ShowEmpty(msg)
}

// Fail：当前代结果失败；清除旧内容并展示错误占位
func (c *Card) Fail(msg string) {
	if !c.fromLoading(StateError) {
		return
	}
	c.surface.ClearContent()
	c.surface.ShowError(msg)
}

// FailPermanently：渲染能力缺失时的永久降级，仅影响本卡
func (c *Card) FailPermanently(msg string) {
	c.permanent = true
	c.state = StateError
	c.surface.ClearContent()
	c.surface.ShowError(msg)
}

func (c *Card) State() State { return c.state }

func (c *Card) fromLoading(to State) bool {
	if c.permanent {
		return false
	}
	if c.state != StateLoading {
		// 结果只允许落在本代 loading 之上；其余一律忽略
		logger.L().Debug("card_transition_ignored", "card", c.name, "from", c.state, "to", to)
		return false
	}
	c.state = to
	return true
}
