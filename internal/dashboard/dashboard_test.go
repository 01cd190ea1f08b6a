package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dvf-dashboard/internal/charts"
	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/fetch"
	"dvf-dashboard/internal/filter"
	"dvf-dashboard/internal/maprender"
	"dvf-dashboard/internal/present"
)

// ---- 假抓取器：按视图计数，支持用门通道人为控制解析顺序 ----

type fakeFetcher struct {
	mu      sync.Mutex
	counts  map[string]int
	heatmap func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error)
	options func(ctx context.Context, dept string) (*dvf.OptionsPayload, error)
	charts  func(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{counts: map[string]int{}}
}

func (f *fakeFetcher) bump(view string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[view]++
	return f.counts[view]
}

func (f *fakeFetcher) count(view string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[view]
}

func (f *fakeFetcher) Heatmap(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
	f.bump("map")
	if f.heatmap == nil {
		return heatmapFor("00000"), nil
	}
	return f.heatmap(ctx, sel)
}

func (f *fakeFetcher) CommuneOptions(ctx context.Context, dept string) (*dvf.OptionsPayload, error) {
	f.bump("options")
	if f.options == nil {
		return &dvf.OptionsPayload{Communes: []dvf.CommuneOption{}}, nil
	}
	return f.options(ctx, dept)
}

func (f *fakeFetcher) Charts(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error) {
	f.bump("charts")
	if f.charts == nil {
		return chartsFor("France entière"), nil
	}
	return f.charts(ctx, sel, limit)
}

func heatmapFor(code string) *dvf.HeatmapPayload {
	return &dvf.HeatmapPayload{
		Summary: dvf.Summary{Level: dvf.LevelCommune, MaxSales: 10,
			Metrics: dvf.Metrics{TotalSales: 10}},
		Points: []dvf.Point{{
			Code: code, Name: "C" + code, Level: dvf.LevelCommune,
			Centroid: &dvf.LatLon{Lat: 48, Lon: 2}, SalesCount: 10,
			Commune: &dvf.CommuneDetail{},
		}},
	}
}

func chartsFor(scope string) *dvf.ChartsPayload {
	return &dvf.ChartsPayload{
		Selection:  dvf.Selection{Level: dvf.LevelNational},
		TypeTotals: map[string]int{},
		TopCommunes: dvf.RankedList{ScopeLabel: scope, Limit: 10, Items: []dvf.RankedItem{
			{Code: "75056", Label: "Paris", SalesCount: 10, TotalValue: 100, Rank: 1},
		}},
		TimeSeries: dvf.TimeSeries{Points: []dvf.TimePoint{
			{Month: "2023-01-01", SalesCount: 10, TotalValue: 100},
		}},
		PriceBoxplot:  dvf.DispersionSet{Items: []dvf.BoxItem{}},
		MutationStack: dvf.StackedSeries{Labels: []string{}, Series: []dvf.StackBand{}},
	}
}

// ---- 假渲染面 ----

type fakeSelector struct {
	enabled bool
	resets  int
	options []dvf.CommuneOption
}

func (s *fakeSelector) Disable() { s.enabled = false }
func (s *fakeSelector) Enable()  { s.enabled = true }
func (s *fakeSelector) Reset() {
	s.resets++
	s.options = nil
}
func (s *fakeSelector) SetOptions(opts []dvf.CommuneOption) { s.options = opts }

type fakeMapSurface struct {
	cleared int
	markers []string
	resets  int
}

func (m *fakeMapSurface) ClearMarkers() {
	m.cleared++
	m.markers = nil
}
func (m *fakeMapSurface) AddMarker(mk maprender.Marker) { m.markers = append(m.markers, mk.Code) }
func (m *fakeMapSurface) FitBounds(b maprender.Bounds, paddingPx int) {}
func (m *fakeMapSurface) ResetView(b maprender.Bounds)                { m.resets++ }

type fakePlaceholder struct{ events []string }

func (p *fakePlaceholder) ShowLoading(msg string) { p.events = append(p.events, "loading") }
func (p *fakePlaceholder) ShowEmpty(msg string)   { p.events = append(p.events, "empty") }
func (p *fakePlaceholder) ShowError(msg string)   { p.events = append(p.events, "error") }
func (p *fakePlaceholder) ClearContent()          { p.events = append(p.events, "clear") }

type fakeChartSurface struct {
	fakePlaceholder
	renders int
}

func (c *fakeChartSurface) RenderChart(cfg *charts.ChartConfig) { c.renders++ }

type fakeKPI struct{}

func (fakeKPI) UpdateKPIs(v present.KPIValues) {}
func (fakeKPI) KPILoading()                    {}
func (fakeKPI) KPIError()                      {}

type rig struct {
	d        *Dashboard
	f        *fakeFetcher
	selector *fakeSelector
	mapSurf  *fakeMapSurface
	mapPH    *fakePlaceholder
	ranked   *fakeChartSurface
}

func newRig(f *fakeFetcher) *rig {
	r := &rig{
		f:        f,
		selector: &fakeSelector{},
		mapSurf:  &fakeMapSurface{},
		mapPH:    &fakePlaceholder{},
		ranked:   &fakeChartSurface{},
	}
	r.d = New(f, Surfaces{
		Selector:         r.selector,
		Map:              r.mapSurf,
		MapPlaceholder:   r.mapPH,
		Ranked:           r.ranked,
		TimeSeries:       &fakeChartSurface{},
		Dispersion:       &fakeChartSurface{},
		Stacked:          &fakeChartSurface{},
		KPI:              []present.KPISurface{fakeKPI{}},
		BoxplotAvailable: true,
	}, fetch.DefaultTopLimit)
	return r
}

func nextResult(t *testing.T, d *Dashboard) fetch.Result {
	t.Helper()
	select {
	case r := <-d.ctl.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch result")
		return fetch.Result{}
	}
}

// blockUntilCleanup：让某类抓取悬挂到测试结束，隔离被测视图的结果流
func blockUntilCleanup(t *testing.T) chan struct{} {
	t.Helper()
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	return gate
}

// 规格场景：快速连选省 A 再省 B，A 的选项晚于 B 解析
// → 选择器最终只含 B 省的市镇，绝不含 A 的
func TestOptionsRaceLastDepartmentWins(t *testing.T) {
	f := newFakeFetcher()
	gates := map[string]chan struct{}{"75": make(chan struct{}), "69": make(chan struct{})}
	f.options = func(ctx context.Context, dept string) (*dvf.OptionsPayload, error) {
		<-gates[dept]
		return &dvf.OptionsPayload{Communes: []dvf.CommuneOption{
			{CodeCommune: dept + "001", Name: "Commune de " + dept},
		}}, nil
	}
	mainGate := blockUntilCleanup(t)
	f.heatmap = func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	f.charts = func(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SelectDepartment, Code: "75"})
	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SelectDepartment, Code: "69"})
	if r.selector.enabled {
		t.Fatal("selector must stay disabled until the new option set resolves")
	}
	if r.selector.resets != 2 {
		t.Fatalf("selector resets = %d, want 2", r.selector.resets)
	}

	// B（69）先解析
	close(gates["69"])
	res := nextResult(t, r.d)
	r.d.handleResult(res)
	if !r.selector.enabled || len(r.selector.options) != 1 || r.selector.options[0].CodeCommune != "69001" {
		t.Fatalf("selector must hold department 69 options, got %+v", r.selector.options)
	}

	// A（75）后到：过期丢弃，选择器不回退
	close(gates["75"])
	res = nextResult(t, r.d)
	r.d.handleResult(res)
	if len(r.selector.options) != 1 || r.selector.options[0].CodeCommune != "69001" {
		t.Fatalf("late options for a superseded department leaked in: %+v", r.selector.options)
	}
	if !r.selector.enabled {
		t.Fatal("stale result must not disable the selector")
	}
}

// 地图视图乱序解析：先发起的响应后到达时被丢弃，界面保持最新一代
func TestMapOutOfOrderResolution(t *testing.T) {
	f := newFakeFetcher()
	// 两次抓取按选择区分：全国范围走第一道门，市镇选择走第二道门
	gates := map[string]chan struct{}{"": make(chan struct{}), "75056": make(chan struct{})}
	f.heatmap = func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
		<-gates[sel.Commune]
		if sel.Commune == "" {
			return heatmapFor("11111"), nil
		}
		return heatmapFor("22222"), nil
	}
	chartsGate := blockUntilCleanup(t)
	f.charts = func(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error) {
		<-chartsGate
		return nil, context.Canceled
	}
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SubmitFilters})
	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SelectCommune, Code: "75056"})

	// 后发起的（市镇选择）先解析
	close(gates["75056"])
	r.d.handleResult(nextResult(t, r.d))
	if len(r.mapSurf.markers) != 1 || r.mapSurf.markers[0] != "22222" {
		t.Fatalf("markers = %+v, want the second generation", r.mapSurf.markers)
	}
	cleared := r.mapSurf.cleared

	// 先发起的（全国范围）后到达：过期丢弃
	close(gates[""])
	r.d.handleResult(nextResult(t, r.d))
	if r.mapSurf.markers[0] != "22222" {
		t.Fatal("stale heatmap regressed the map")
	}
	if r.mapSurf.cleared != cleared {
		t.Fatal("stale heatmap must not even clear the surface")
	}
}

// 指标切换不得触发任何网络请求
func TestMetricToggleIssuesNoFetch(t *testing.T) {
	f := newFakeFetcher()
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SubmitFilters})
	r.d.handleResult(nextResult(t, r.d))
	r.d.handleResult(nextResult(t, r.d))
	if f.count("map") != 1 || f.count("charts") != 1 {
		t.Fatalf("fetch counts before toggle: map=%d charts=%d", f.count("map"), f.count("charts"))
	}
	rendersBefore := r.ranked.renders

	r.d.handleToggle(charts.MetricValue)
	if f.count("map") != 1 || f.count("charts") != 1 || f.count("options") != 0 {
		t.Fatalf("toggle issued a fetch: %v", f.counts)
	}
	if r.ranked.renders != rendersBefore+1 {
		t.Fatalf("toggle must re-render from the cached payload, renders %d -> %d",
			rendersBefore, r.ranked.renders)
	}
}

// 选项抓取失败：选择器保持禁用、只含默认项，主视图不受影响
func TestOptionsFailureLeavesSelectorDisabled(t *testing.T) {
	f := newFakeFetcher()
	f.options = func(ctx context.Context, dept string) (*dvf.OptionsPayload, error) {
		return nil, errors.New("connection refused")
	}
	mainGate := blockUntilCleanup(t)
	f.heatmap = func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	f.charts = func(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SelectDepartment, Code: "75"})
	r.d.handleResult(nextResult(t, r.d))
	if r.selector.enabled || len(r.selector.options) != 0 {
		t.Fatalf("selector must stay disabled with default entry only, got enabled=%v opts=%v",
			r.selector.enabled, r.selector.options)
	}
	// 主视图仍在 loading，没有被选项失败拖入 error
	for _, ev := range r.mapPH.events {
		if ev == "error" {
			t.Fatal("options failure must not fail the map view")
		}
	}
}

// 清除父级选择：选择器禁用但不发起选项抓取
func TestClearDepartmentSkipsOptionsFetch(t *testing.T) {
	f := newFakeFetcher()
	mainGate := blockUntilCleanup(t)
	f.heatmap = func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	f.charts = func(ctx context.Context, sel filter.Selection, limit int) (*dvf.ChartsPayload, error) {
		<-mainGate
		return nil, context.Canceled
	}
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SelectDepartment, Code: ""})
	if f.count("options") != 0 {
		t.Fatal("clearing the parent must not fetch options")
	}
	if r.selector.enabled || r.selector.resets != 1 {
		t.Fatalf("selector must be reset and disabled, got %+v", r.selector)
	}
}

// 地图抓取失败：清除旧内容并进入 error；空结果进入 empty 并回退全国视野
func TestMapFailureAndEmpty(t *testing.T) {
	f := newFakeFetcher()
	fail := true
	f.heatmap = func(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
		if fail {
			return nil, errors.New("status 502")
		}
		return &dvf.HeatmapPayload{
			Summary: dvf.Summary{Level: dvf.LevelCommune},
			Points:  []dvf.Point{},
		}, nil
	}
	r := newRig(f)
	ctx := context.Background()

	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SubmitFilters})
	drainViews(t, r.d, 2)
	if last(r.mapPH.events) != "error" {
		t.Fatalf("map placeholder events = %v, want error last", r.mapPH.events)
	}

	fail = false
	r.d.handleIntent(ctx, filter.Intent{Kind: filter.SubmitFilters})
	drainViews(t, r.d, 2)
	if last(r.mapPH.events) != "empty" {
		t.Fatalf("map placeholder events = %v, want empty last", r.mapPH.events)
	}
	if r.mapSurf.resets == 0 {
		t.Fatal("empty point set must reset the viewport to the default bounds")
	}
}

// 选择与排行指标的快照读取来自 HTTP goroutine，与事件循环并发进行
// 不得竞争（配合 -race 验证）
func TestSelectionConcurrentWithLoop(t *testing.T) {
	f := newFakeFetcher()
	r := newRig(f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.d.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		codes := []string{"75", "69", ""}
		for i := 0; i < 60; i++ {
			r.d.Dispatch(filter.Intent{Kind: filter.SelectDepartment, Code: codes[i%3]})
			if i%10 == 0 {
				r.d.ToggleRankedMetric(charts.MetricValue)
			}
		}
	}()
	for i := 0; i < 300; i++ {
		_ = r.d.Selection()
		_ = r.d.RankedMetricSelected()
	}
	<-done
}

func drainViews(t *testing.T, d *Dashboard, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		d.handleResult(nextResult(t, d))
	}
}

func last(events []string) string {
	if len(events) == 0 {
		return ""
	}
	return events[len(events)-1]
}
