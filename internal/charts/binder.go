package charts

import (
	"fmt"

	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/logger"
	"dvf-dashboard/internal/present"
)

// RankedMetric：排行卡展示的指标（纯客户端切换，不触发网络请求）
type RankedMetric string

const (
	MetricSales RankedMetric = "sales_count"
	MetricValue RankedMetric = "total_value"
)

const (
	loadingMsg = "Chargement…"
	errorMsg   = "Données indisponibles"
	emptyMsg   = "Aucune donnée"
)

// Binder：四张独立卡片的绑定器
// 背景：四个聚合共享一次抓取代际；卡片各自空/就绪互不影响，但同一代内
// 绝不混用两次选择的数据。最近一次应用的载荷留存，供指标切换原地重绘。
type Binder struct {
	ranked     *boundCard
	timeSeries *boundCard
	dispersion *boundCard
	stacked    *boundCard
	kpi        *present.KPIPanel

	rankedMetric RankedMetric
	payload      *dvf.ChartsPayload
}

type boundCard struct {
	st   *present.Card
	surf ChartSurface
}

// NewBinder：构造绑定器
// 约束：boxplotAvailable 为假（插件注册失败）时离散卡永久降级为 error，
// 其余三卡不受影响。
func NewBinder(ranked, timeSeries, dispersion, stacked ChartSurface, kpi *present.KPIPanel, boxplotAvailable bool) *Binder {
	b := &Binder{
		ranked:       &boundCard{st: present.NewCard("top_communes", ranked), surf: ranked},
		timeSeries:   &boundCard{st: present.NewCard("time_series", timeSeries), surf: timeSeries},
		dispersion:   &boundCard{st: present.NewCard("price_boxplot", dispersion), surf: dispersion},
		stacked:      &boundCard{st: present.NewCard("mutation_stack", stacked), surf: stacked},
		kpi:          kpi,
		rankedMetric: MetricSales,
	}
	if !boxplotAvailable {
		logger.L().Warn("boxplot_capability_missing")
		b.dispersion.st.FailPermanently("Graphique indisponible")
	}
	return b
}

// Loading：新一代图表抓取发起，四卡与 KPI 同步进入 loading
func (b *Binder) Loading() {
	for _, c := range b.cards() {
		c.st.Begin(loadingMsg)
	}
	b.kpi.Loading()
}

// Fail：当前代抓取失败，四卡进入 error、KPI 显示错误占位
func (b *Binder) Fail() {
	for _, c := range b.cards() {
		c.st.Fail(errorMsg)
	}
	b.kpi.Error()
}

// Bind：应用当前代载荷；每张卡独立判定空/就绪
func (b *Binder) Bind(p *dvf.ChartsPayload) {
	b.payload = p
	b.kpi.Update(p.Metrics, scopeLabel(p))
	b.bindRanked(p)
	b.bindTimeSeries(p)
	b.bindDispersion(p)
	b.bindStacked(p)
}

// SetRankedMetric：切换排行卡指标并从已留存的载荷原地重绘
// 约束：绝不触发新的网络请求；卡片未就绪（空/错/加载中）时仅记录选择
func (b *Binder) SetRankedMetric(m RankedMetric) {
	if m != MetricSales && m != MetricValue {
		return
	}
	if b.rankedMetric == m {
		return
	}
	b.rankedMetric = m
	if b.payload != nil && b.ranked.st.State() == present.StateReady {
		b.ranked.surf.RenderChart(b.rankedConfig(&b.payload.TopCommunes))
	}
}

// RankedMetricSelected：当前排行指标（快照展示用）
func (b *Binder) RankedMetricSelected() RankedMetric { return b.rankedMetric }

// CardStates：四卡状态快照（诊断与测试用）
func (b *Binder) CardStates() map[string]present.State {
	return map[string]present.State{
		"top_communes":   b.ranked.st.State(),
		"time_series":    b.timeSeries.st.State(),
		"price_boxplot":  b.dispersion.st.State(),
		"mutation_stack": b.stacked.st.State(),
	}
}

func (b *Binder) cards() []*boundCard {
	return []*boundCard{b.ranked, b.timeSeries, b.dispersion, b.stacked}
}

func (b *Binder) bindRanked(p *dvf.ChartsPayload) {
	rl := &p.TopCommunes
	if len(rl.Items) == 0 {
		// 空态保留范围标签，呈现 "Top 0" 语境
		b.ranked.st.Empty(fmt.Sprintf("Top 0 – %s : %s", scopeLabel(p), emptyMsg))
		return
	}
	b.ranked.st.Ready(func() {
		b.ranked.surf.RenderChart(b.rankedConfig(rl))
	})
}

func (b *Binder) rankedConfig(rl *dvf.RankedList) *ChartConfig {
	labels := make([]string, len(rl.Items))
	data := make([]float64, len(rl.Items))
	colors := make([]string, len(rl.Items))
	meta := make([]map[string]any, len(rl.Items))
	for i, it := range rl.Items {
		labels[i] = it.Label
		if b.rankedMetric == MetricValue {
			data[i] = it.TotalValue
		} else {
			data[i] = float64(it.SalesCount)
		}
		// 当前选中实体用替代色与其余区分
		if it.IsSelected {
			colors[i] = highlightColor
		} else {
			colors[i] = palette[0]
		}
		m := map[string]any{
			"code":        it.Code,
			"rank":        it.Rank,
			"sales_count": it.SalesCount,
			"total_value": it.TotalValue,
			"is_selected": it.IsSelected,
		}
		if it.DepartmentCode != nil {
			m["department_code"] = *it.DepartmentCode
		}
		meta[i] = m
	}
	title := fmt.Sprintf("Top %d – %s", rl.Limit, rl.ScopeLabel)
	return &ChartConfig{
		Type:   "bar",
		Title:  title,
		Labels: labels,
		Series: []Series{{Label: seriesLabel(b.rankedMetric), Data: data, Colors: colors}},
		Meta:   meta,
	}
}

func (b *Binder) bindTimeSeries(p *dvf.ChartsPayload) {
	ts := &p.TimeSeries
	if len(ts.Points) == 0 {
		b.timeSeries.st.Empty(emptyMsg)
		return
	}
	b.timeSeries.st.Ready(func() {
		labels := make([]string, len(ts.Points))
		counts := make([]float64, len(ts.Points))
		values := make([]float64, len(ts.Points))
		meta := make([]map[string]any, len(ts.Points))
		for i, pt := range ts.Points {
			labels[i] = pt.Month
			counts[i] = float64(pt.SalesCount)
			values[i] = pt.TotalValue
			meta[i] = map[string]any{
				"month":       pt.Month,
				"sales_count": pt.SalesCount,
				"total_value": pt.TotalValue,
			}
		}
		b.timeSeries.surf.RenderChart(&ChartConfig{
			Type:     "line",
			Title:    "Évolution mensuelle",
			Labels:   labels,
			DualAxis: true,
			// 轴界钉在首尾数据点，稀疏月份不被自动缩放压缩
			XMin: ts.Points[0].Month,
			XMax: ts.Points[len(ts.Points)-1].Month,
			Series: []Series{
				{Label: "Ventes", Data: counts, Axis: "left", Color: palette[0]},
				{Label: "Valeur totale", Data: values, Axis: "right", Color: palette[1]},
			},
			Meta: meta,
		})
	})
}

func (b *Binder) bindDispersion(p *dvf.ChartsPayload) {
	ds := &p.PriceBoxplot
	if len(ds.Items) == 0 {
		b.dispersion.st.Empty(emptyMsg)
		return
	}
	b.dispersion.st.Ready(func() {
		labels := make([]string, len(ds.Items))
		medians := make([]float64, len(ds.Items))
		meta := make([]map[string]any, len(ds.Items))
		for i, it := range ds.Items {
			labels[i] = it.Label
			medians[i] = it.Stats.Median
			meta[i] = map[string]any{
				"min":         it.Stats.Min,
				"q1":          it.Stats.Q1,
				"median":      it.Stats.Median,
				"q3":          it.Stats.Q3,
				"max":         it.Stats.Max,
				"whiskerLow":  it.Stats.WhiskerLow,
				"whiskerHigh": it.Stats.WhiskerHigh,
				"outliers":    it.Stats.Outliers,
				"rawMin":      it.Stats.RawMin,
				"rawMax":      it.Stats.RawMax,
				"count":       it.Stats.Count,
			}
		}
		b.dispersion.surf.RenderChart(&ChartConfig{
			Type:   "boxplot",
			Title:  "Dispersion des prix",
			Labels: labels,
			Unit:   ds.Unit,
			Series: []Series{{Label: "Médiane", Data: medians, Color: palette[4]}},
			Meta:   meta,
		})
	})
}

func (b *Binder) bindStacked(p *dvf.ChartsPayload) {
	ms := &p.MutationStack
	if len(ms.Labels) == 0 || len(ms.Series) == 0 {
		b.stacked.st.Empty(emptyMsg)
		return
	}
	b.stacked.st.Ready(func() {
		series := make([]Series, len(ms.Series))
		for i, band := range ms.Series {
			data := make([]float64, len(band.Data))
			for j, v := range band.Data {
				data[j] = float64(v)
			}
			series[i] = Series{Label: band.Label, Data: data, Color: palette[i%len(palette)]}
		}
		meta := make([]map[string]any, len(ms.Labels))
		for i, label := range ms.Labels {
			meta[i] = map[string]any{"type": label, "type_total": p.TypeTotals[label]}
		}
		b.stacked.surf.RenderChart(&ChartConfig{
			Type:    "bar",
			Title:   "Répartition des mutations",
			Labels:  ms.Labels,
			Stacked: true,
			Series:  series,
			Meta:    meta,
		})
	})
}

func seriesLabel(m RankedMetric) string {
	if m == MetricValue {
		return "Valeur totale"
	}
	return "Ventes"
}

// scopeLabel：范围标签；排行载荷缺失时回退到选择回显
func scopeLabel(p *dvf.ChartsPayload) string {
	if p.TopCommunes.ScopeLabel != "" {
		return p.TopCommunes.ScopeLabel
	}
	if p.Selection.Commune != nil {
		return p.Selection.Commune.Name
	}
	if p.Selection.Department != nil {
		return p.Selection.Department.Name
	}
	return "France entière"
}
