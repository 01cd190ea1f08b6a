// 包 api：仪表盘状态快照与 HTTP 路由
// 背景：地图/图表/选择器/KPI 的渲染面在此以内存快照实现，经 /dashboard 以 JSON
// 对外呈现；前端（或测试）轮询快照即可得到与事件循环一致的最终状态。
package api

import (
	"sync"

	"dvf-dashboard/internal/charts"
	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/maprender"
	"dvf-dashboard/internal/present"
)

// SelectorState：市镇选择器的对外状态
type SelectorState struct {
	Enabled bool                `json:"enabled"`
	Options []dvf.CommuneOption `json:"options"`
}

// MapState：地图面的对外状态
type MapState struct {
	State     string             `json:"state"`
	Message   string             `json:"message,omitempty"`
	Markers   []maprender.Marker `json:"markers"`
	Bounds    *maprender.Bounds  `json:"bounds,omitempty"`
	PaddingPx int                `json:"padding_px,omitempty"`
}

// CardState：一张图表卡的对外状态
type CardState struct {
	State   string             `json:"state"`
	Message string             `json:"message,omitempty"`
	Chart   *charts.ChartConfig `json:"chart,omitempty"`
}

// KPIState：一处 KPI 部件的对外状态
type KPIState struct {
	State  string            `json:"state"`
	Values present.KPIValues `json:"values"`
}

// State：完整快照
type State struct {
	Selector SelectorState        `json:"selector"`
	Map      MapState             `json:"map"`
	Cards    map[string]CardState `json:"cards"`
	KPIs     map[string]KPIState  `json:"kpis"`
}

// Snapshot：渲染面的内存实现
// 约束：写入来自单一事件循环，读取来自 HTTP goroutine，用读写锁隔离；
// 快照本身不含任何业务判断，只如实记录渲染指令。
type Snapshot struct {
	mu sync.RWMutex
	st State
}

func NewSnapshot() *Snapshot {
	return &Snapshot{st: State{
		Selector: SelectorState{Options: []dvf.CommuneOption{}},
		Map:      MapState{State: "loading", Markers: []maprender.Marker{}},
		Cards:    map[string]CardState{},
		KPIs:     map[string]KPIState{},
	}}
}

// State：返回快照副本供序列化
func (s *Snapshot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.st
	out.detach()
	return out
}

// detach：深拷贝可变切片与映射，避免编码期间与事件循环竞争
func (st *State) detach() {
	markers := make([]maprender.Marker, len(st.Map.Markers))
	copy(markers, st.Map.Markers)
	st.Map.Markers = markers
	opts := make([]dvf.CommuneOption, len(st.Selector.Options))
	copy(opts, st.Selector.Options)
	st.Selector.Options = opts
	cards := make(map[string]CardState, len(st.Cards))
	for k, v := range st.Cards {
		cards[k] = v
	}
	st.Cards = cards
	kpis := make(map[string]KPIState, len(st.KPIs))
	for k, v := range st.KPIs {
		kpis[k] = v
	}
	st.KPIs = kpis
}

// ---- 选择器面 ----

type selectorSurface struct{ s *Snapshot }

// Selector：市镇选择器渲染面
func (s *Snapshot) Selector() *selectorSurface { return &selectorSurface{s} }

func (x *selectorSurface) Disable() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Selector.Enabled = false
}

func (x *selectorSurface) Enable() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Selector.Enabled = true
}

func (x *selectorSurface) Reset() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Selector.Options = []dvf.CommuneOption{}
}

func (x *selectorSurface) SetOptions(opts []dvf.CommuneOption) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Selector.Options = append([]dvf.CommuneOption{}, opts...)
}

// ---- 地图面（绘制 + 占位） ----

type mapSurface struct{ s *Snapshot }

// MapSurface：地图绘制面
func (s *Snapshot) MapSurface() *mapSurface { return &mapSurface{s} }

func (x *mapSurface) ClearMarkers() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.Markers = []maprender.Marker{}
	x.s.st.Map.Bounds = nil
	x.s.st.Map.PaddingPx = 0
}

func (x *mapSurface) AddMarker(m maprender.Marker) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.Markers = append(x.s.st.Map.Markers, m)
}

func (x *mapSurface) FitBounds(b maprender.Bounds, paddingPx int) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.Bounds = &b
	x.s.st.Map.PaddingPx = paddingPx
	x.s.st.Map.State = "ready"
}

func (x *mapSurface) ResetView(b maprender.Bounds) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.Bounds = &b
	x.s.st.Map.PaddingPx = 0
}

type mapPlaceholder struct{ s *Snapshot }

// MapPlaceholder：地图占位面（loading/empty/error 文案与内容清除）
func (s *Snapshot) MapPlaceholder() *mapPlaceholder { return &mapPlaceholder{s} }

func (x *mapPlaceholder) ShowLoading(msg string) { x.setMapState("loading", msg) }
func (x *mapPlaceholder) ShowEmpty(msg string)   { x.setMapState("empty", msg) }
func (x *mapPlaceholder) ShowError(msg string)   { x.setMapState("error", msg) }

func (x *mapPlaceholder) ClearContent() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.Markers = []maprender.Marker{}
	x.s.st.Map.Bounds = nil
	x.s.st.Map.PaddingPx = 0
}

func (x *mapPlaceholder) setMapState(state, msg string) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.Map.State = state
	x.s.st.Map.Message = msg
}

// ---- 图表卡面 ----

type cardSurface struct {
	s    *Snapshot
	name string
}

// Card：按名称取一张图表卡的渲染面
func (s *Snapshot) Card(name string) *cardSurface { return &cardSurface{s: s, name: name} }

func (x *cardSurface) ShowLoading(msg string) { x.set("loading", msg, nil, false) }
func (x *cardSurface) ShowEmpty(msg string)   { x.set("empty", msg, nil, false) }
func (x *cardSurface) ShowError(msg string)   { x.set("error", msg, nil, false) }

func (x *cardSurface) ClearContent() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	c := x.s.st.Cards[x.name]
	c.Chart = nil
	x.s.st.Cards[x.name] = c
}

func (x *cardSurface) RenderChart(cfg *charts.ChartConfig) {
	x.set("ready", "", cfg, true)
}

func (x *cardSurface) set(state, msg string, chart *charts.ChartConfig, withChart bool) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	c := x.s.st.Cards[x.name]
	c.State = state
	c.Message = msg
	if withChart {
		c.Chart = chart
	}
	x.s.st.Cards[x.name] = c
}

// ---- KPI 面 ----

type kpiSurface struct {
	s    *Snapshot
	slot string
}

// KPI：按位置（header/summary）取一处 KPI 部件的渲染面
func (s *Snapshot) KPI(slot string) *kpiSurface { return &kpiSurface{s: s, slot: slot} }

func (x *kpiSurface) UpdateKPIs(v present.KPIValues) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	x.s.st.KPIs[x.slot] = KPIState{State: "ready", Values: v}
}

func (x *kpiSurface) KPILoading() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	k := x.s.st.KPIs[x.slot]
	k.State = "loading"
	x.s.st.KPIs[x.slot] = k
}

func (x *kpiSurface) KPIError() {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	k := x.s.st.KPIs[x.slot]
	k.State = "error"
	x.s.st.KPIs[x.slot] = k
}
