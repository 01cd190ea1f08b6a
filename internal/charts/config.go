// 包 charts：把图表载荷的四个独立聚合绑定到外部图表面
// 背景：图表库的绘制原语在核心之外，这里产出 ChartConfig 数据与逐条目侧表，
// 保证 tooltip/图例与图形使用同一份条目对象，数值口径不漂移。
package charts

import "dvf-dashboard/internal/present"

// 调色板与选中高亮色
var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

const highlightColor = "#F59E0B"

// Series：一条序列；Axis 标注双轴归属，Colors 非空时按条着色（排行高亮）
type Series struct {
	Label  string    `json:"label"`
	Data   []float64 `json:"data"`
	Axis   string    `json:"axis,omitempty"`
	Color  string    `json:"color,omitempty"`
	Colors []string  `json:"colors,omitempty"`
}

// ChartConfig：一次图表渲染的全部输入
// 约束：XMin/XMax 锚定首尾数据点（时间走势卡），不交给图表库自动缩放；
// Meta 按条目下标对齐，供 tooltip 取上下文字段。
type ChartConfig struct {
	Type     string           `json:"type"`
	Title    string           `json:"title"`
	Labels   []string         `json:"labels"`
	Series   []Series         `json:"series"`
	Stacked  bool             `json:"stacked,omitempty"`
	DualAxis bool             `json:"dual_axis,omitempty"`
	XMin     string           `json:"x_min,omitempty"`
	XMax     string           `json:"x_max,omitempty"`
	Unit     string           `json:"unit,omitempty"`
	Meta     []map[string]any `json:"meta,omitempty"`
}

// ChartSurface：外部图表面的能力接口（占位呈现 + 实际绘制）
type ChartSurface interface {
	present.PlaceholderSurface
	RenderChart(cfg *ChartConfig)
}
