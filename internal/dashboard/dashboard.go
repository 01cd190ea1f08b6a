// 包 dashboard：过滤→抓取→渲染管线的编排循环
// 背景：所有状态变更都发生在单一事件循环 goroutine 中（等价于单线程事件驱动模型）；
// 抓取在控制器派生的 goroutine 里进行，结果回流到循环串行应用，
// 应用前先做代际校验，乱序/过期响应不可能让界面回退或混拼两次选择。
package dashboard

import (
	"context"
	"errors"
	"sync"

	"dvf-dashboard/internal/charts"
	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/fetch"
	"dvf-dashboard/internal/filter"
	"dvf-dashboard/internal/logger"
	"dvf-dashboard/internal/maprender"
	"dvf-dashboard/internal/metrics"
	"dvf-dashboard/internal/present"
)

const (
	loadingMsg = "Chargement…"
	errorMsg   = "Données indisponibles"
	emptyMsg   = "Aucune vente pour cette sélection"
)

// Fetcher：三个聚合端点的抓取能力（fetch.Client 满足；测试注入计数假件）
type Fetcher interface {
	Heatmap(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error)
	CommuneOptions(ctx context.Context, department string) (*dvf.OptionsPayload, error)
	Charts(ctx context.Context, sel filter.Selection, topLimit int) (*dvf.ChartsPayload, error)
}

// SelectorSurface：市镇级联选择器面
// 约束：父级变更时先 Reset+Disable，新选项集解析成功后才 Enable；
// 选项抓取失败时保持禁用且只含默认项。
type SelectorSurface interface {
	Disable()
	Enable()
	Reset()
	SetOptions(opts []dvf.CommuneOption)
}

// Surfaces：编排器依赖的全部外部渲染面
type Surfaces struct {
	Selector       SelectorSurface
	Map            maprender.MapSurface
	MapPlaceholder present.PlaceholderSurface
	Ranked         charts.ChartSurface
	TimeSeries     charts.ChartSurface
	Dispersion     charts.ChartSurface
	Stacked        charts.ChartSurface
	KPI            []present.KPISurface
	// BoxplotAvailable：离散图渲染能力是否在启动时注册成功
	BoxplotAvailable bool
}

// Dashboard：编排器
// 约束：state 与排行指标只在事件循环中被修改；HTTP goroutine 经 Selection /
// RankedMetricSelected 读取快照，读写之间用 stateMu 隔离。
type Dashboard struct {
	stateMu  sync.RWMutex
	state    filter.State
	ctl      *fetch.Controller
	client   Fetcher
	topLimit int

	selector SelectorSurface
	mapCard  *present.Card
	mapRend  *maprender.Renderer
	binder   *charts.Binder

	intents chan filter.Intent
	toggles chan charts.RankedMetric
}

func New(client Fetcher, s Surfaces, topLimit int) *Dashboard {
	kpi := present.NewKPIPanel(s.KPI...)
	return &Dashboard{
		ctl:      fetch.NewController(),
		client:   client,
		topLimit: topLimit,
		selector: s.Selector,
		mapCard:  present.NewCard("map", s.MapPlaceholder),
		mapRend:  maprender.New(s.Map),
		binder:   charts.NewBinder(s.Ranked, s.TimeSeries, s.Dispersion, s.Stacked, kpi, s.BoxplotAvailable),
		intents:  make(chan filter.Intent, 16),
		toggles:  make(chan charts.RankedMetric, 16),
	}
}

// Dispatch：投递一个用户意图到编排循环
func (d *Dashboard) Dispatch(it filter.Intent) { d.intents <- it }

// ToggleRankedMetric：切换排行卡指标（纯客户端操作，不触发抓取）
func (d *Dashboard) ToggleRankedMetric(m charts.RankedMetric) { d.toggles <- m }

// Selection：当前过滤选择的只读快照
func (d *Dashboard) Selection() filter.Selection {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state.Selection()
}

// RankedMetricSelected：当前排行卡指标（状态快照接口回显用）
func (d *Dashboard) RankedMetricSelected() charts.RankedMetric {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.binder.RankedMetricSelected()
}

// Run：事件循环；页面会话的生命周期等于 ctx 的生命周期
// 约束：意图与结果在同一循环串行处理，期间不断接受新的用户输入；
// 悬挂的抓取让对应视图停留在 loading，直到下一次过滤变更将其取代。
func (d *Dashboard) Run(ctx context.Context) {
	logger.L().Info("dashboard_loop_start")
	// 初始渲染：空选择即全国范围
	d.refetch(ctx, d.state.Selection())
	d.selector.Disable()
	for {
		select {
		case <-ctx.Done():
			logger.L().Info("dashboard_loop_stop")
			return
		case it := <-d.intents:
			d.handleIntent(ctx, it)
		case m := <-d.toggles:
			d.handleToggle(m)
		case res := <-d.ctl.Results():
			d.handleResult(res)
		}
	}
}

func (d *Dashboard) handleIntent(ctx context.Context, it filter.Intent) {
	d.stateMu.Lock()
	eff, err := d.state.Apply(it)
	sel := d.state.Selection()
	d.stateMu.Unlock()
	if err != nil {
		logger.L().Warn("intent_rejected", "intent", it.Kind, "code", it.Code, "err", err)
		return
	}
	metrics.IntentsTotal.WithLabelValues(string(it.Kind)).Inc()
	logger.L().Debug("intent_applied", "intent", it.Kind, "department", sel.Department, "commune", sel.Commune)

	if eff.ResetCommuneOptions {
		// 依赖选择器立即禁用并回到默认项，等新选项集解析成功再启用
		d.selector.Reset()
		d.selector.Disable()
	}
	if eff.FetchCommuneOptions {
		dept := sel.Department
		d.ctl.Issue(ctx, fetch.ViewCommuneOptions, func(c context.Context) (any, error) {
			return d.client.CommuneOptions(c, dept)
		})
	}
	if eff.Refetch {
		d.refetch(ctx, sel)
	}
}

// refetch：地图与图表两个视图并发发起，互不等待
func (d *Dashboard) refetch(ctx context.Context, sel filter.Selection) {
	d.mapCard.Begin(loadingMsg)
	d.ctl.Issue(ctx, fetch.ViewMap, func(c context.Context) (any, error) {
		return d.client.Heatmap(c, sel)
	})
	d.binder.Loading()
	topLimit := d.topLimit
	d.ctl.Issue(ctx, fetch.ViewCharts, func(c context.Context) (any, error) {
		return d.client.Charts(c, sel, topLimit)
	})
}

func (d *Dashboard) handleToggle(m charts.RankedMetric) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	d.binder.SetRankedMetric(m)
}

// handleResult：结果应用；过期结果静默丢弃，不改变任何状态
func (d *Dashboard) handleResult(res fetch.Result) {
	if d.ctl.Stale(res) {
		return
	}
	switch res.View {
	case fetch.ViewCommuneOptions:
		d.applyOptions(res)
	case fetch.ViewMap:
		d.applyMap(res)
	case fetch.ViewCharts:
		d.applyCharts(res)
	}
}

func (d *Dashboard) applyOptions(res fetch.Result) {
	if res.Err != nil {
		// 选项抓取失败不阻断主视图：选择器保持禁用、只含默认项
		metrics.ViewFailTotal.WithLabelValues(string(res.View)).Inc()
		logger.L().Error("commune_options_error", "err", res.Err)
		return
	}
	p := res.Payload.(*dvf.OptionsPayload)
	d.selector.SetOptions(p.Communes)
	d.selector.Enable()
	logger.L().Debug("commune_options_applied", "count", len(p.Communes))
}

func (d *Dashboard) applyMap(res fetch.Result) {
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			// 被取代的请求在代际校验前被取消；保险起见同样忽略
			return
		}
		metrics.ViewFailTotal.WithLabelValues(string(res.View)).Inc()
		logger.L().Error("heatmap_fetch_error", "err", res.Err)
		d.mapCard.Fail(errorMsg)
		return
	}
	p := res.Payload.(*dvf.HeatmapPayload)
	if len(p.Points) == 0 {
		metrics.ViewEmptyTotal.WithLabelValues(string(res.View)).Inc()
		d.mapCard.Empty(emptyMsg)
		// 空结果仍要清除旧标记并回退全国视野
		d.mapRend.Render(nil, p.Summary)
		return
	}
	d.mapCard.Ready(func() {
		d.mapRend.Render(p.Points, p.Summary)
	})
}

func (d *Dashboard) applyCharts(res fetch.Result) {
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return
		}
		metrics.ViewFailTotal.WithLabelValues(string(res.View)).Inc()
		logger.L().Error("charts_fetch_error", "err", res.Err)
		d.binder.Fail()
		return
	}
	d.binder.Bind(res.Payload.(*dvf.ChartsPayload))
}
