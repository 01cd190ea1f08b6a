package present

import (
	"fmt"
	"math"
	"strings"

	"dvf-dashboard/internal/dvf"
)

// KPIValues：格式化后的 KPI 展示值；缺失指标显示占位符
type KPIValues struct {
	ScopeLabel    string `json:"scope_label"`
	TotalSales    string `json:"total_sales"`
	TotalValue    string `json:"total_value"`
	MedianPriceM2 string `json:"median_price_m2"`
	DateRange     string `json:"date_range"`
}

// KPISurface：KPI 展示能力；头部与摘要两处各实现一份
type KPISurface interface {
	UpdateKPIs(v KPIValues)
	KPILoading()
	KPIError()
}

// KPIPanel：共享 KPI 面板
// 背景：替代原实现里的页面级全局对象；地图与图表绑定器各自持有面板引用，
// 多处展示面由面板统一扇出，保证头部与摘要始终一致。
type KPIPanel struct {
	surfaces []KPISurface
}

func NewKPIPanel(surfaces ...KPISurface) *KPIPanel {
	return &KPIPanel{surfaces: surfaces}
}

func (p *KPIPanel) Loading() {
	for _, s := range p.surfaces {
		s.KPILoading()
	}
}

func (p *KPIPanel) Error() {
	for _, s := range p.surfaces {
		s.KPIError()
	}
}

// Update：由图表载荷的 metrics 字段驱动，与单卡成败无关
func (p *KPIPanel) Update(m dvf.Metrics, scopeLabel string) {
	v := KPIValues{
		ScopeLabel:    scopeLabel,
		TotalSales:    FormatCount(m.TotalSales),
		TotalValue:    "–",
		MedianPriceM2: "–",
		DateRange:     "–",
	}
	if m.TotalValue != nil {
		v.TotalValue = FormatEuro(*m.TotalValue)
	}
	if m.MedianPriceM2 != nil {
		v.MedianPriceM2 = FormatEuro(*m.MedianPriceM2) + "/m²"
	}
	if m.DateStart != nil && m.DateEnd != nil {
		v.DateRange = monthOf(*m.DateStart) + " → " + monthOf(*m.DateEnd)
	}
	for _, s := range p.surfaces {
		s.UpdateKPIs(v)
	}
}

// FormatCount：千位分组（法式窄空格习惯以普通空格近似）
func FormatCount(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

// FormatEuro：金额展示；百万以上折算为 M€ 保留一位小数
func FormatEuro(v float64) string {
	if v >= 1_000_000 || v <= -1_000_000 {
		return fmt.Sprintf("%.1f M€", v/1_000_000)
	}
	return FormatCount(int(math.Round(v))) + " €"
}

// monthOf：ISO 日期截断到月（"2023-01-01" → "2023-01"）
func monthOf(iso string) string {
	if len(iso) >= 7 {
		return iso[:7]
	}
	return iso
}
