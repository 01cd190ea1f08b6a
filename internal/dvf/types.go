// 包 dvf：上游聚合服务三个只读 JSON 契约的数据模型与解码边界
// 背景：热力图、市镇选项与图表三个端点返回的聚合载荷在此统一解码并归一化；
// 可空字段显式建模为指针，按层级区分的字段建模为带标签的变体，避免渲染层散落空值判断。
// 约束：本包不做任何统计计算（中位数/四分位由服务端预计算）；不持有网络逻辑。
package dvf

// Level：选择范围层级（全国 / 省 / 市镇）
type Level string

const (
	LevelNational   Level = "national"
	LevelDepartment Level = "department"
	LevelCommune    Level = "commune"
)

// LatLon：WGS84 质心坐标
type LatLon struct {
	Lat float64
	Lon float64
}

// Metrics：KPI 汇总指标，驱动头部与摘要两处共享部件
// 约束：除成交数外均为可空，缺失表示当前选择下无法计算（例如无日期的记录集）。
type Metrics struct {
	TotalSales    int      `json:"total_sales"`
	TotalValue    *float64 `json:"total_value"`
	MedianPriceM2 *float64 `json:"median_price_m2"`
	DateStart     *string  `json:"date_start"`
	DateEnd       *string  `json:"date_end"`
}

// EntityRef：摘要中回显的省/市镇引用
type EntityRef struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	DepartmentCode string `json:"department_code,omitempty"`
	AddressCount   int    `json:"address_count,omitempty"`
	CommuneCount   int    `json:"commune_count,omitempty"`
}

// Summary：热力图摘要，决定视口适配与地图图例
type Summary struct {
	Level       Level
	EntityCount int
	MaxSales    int
	Metrics     Metrics
	Department  *EntityRef
	Commune     *EntityRef
}

// DepartmentDetail：仅省级点携带的字段
type DepartmentDetail struct {
	CommuneCount int
}

// CommuneDetail：仅市镇级点携带的字段
type CommuneDetail struct {
	DepartmentCode string
	PostalCodes    []string
}

// Point：一个可渲染的聚合点（按层级的带标签变体）
// 约束：Level 为 department 时仅 Department 非空，为 commune 时仅 Commune 非空；
// Centroid 为空的点不渲染但已计入服务端汇总，客户端不重复计数。
type Point struct {
	Code         string
	Name         string
	Level        Level
	Centroid     *LatLon
	SalesCount   int
	AddressCount int
	Department   *DepartmentDetail
	Commune      *CommuneDetail
}

// HeatmapPayload：热力图端点载荷
type HeatmapPayload struct {
	Summary Summary
	Points  []Point
}

// CommuneOption：级联选择器的一个候选项
type CommuneOption struct {
	CodeCommune string `json:"code_commune"`
	Name        string `json:"name"`
}

// OptionsPayload：市镇选项端点载荷
type OptionsPayload struct {
	Communes []CommuneOption `json:"communes"`
}

// NamedCode：图表载荷选择回显中的编码+名称对
type NamedCode struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Selection：图表载荷的选择上下文回显
type Selection struct {
	Level      Level      `json:"level"`
	Department *NamedCode `json:"department"`
	Commune    *NamedCode `json:"commune"`
}

// RankedItem：排行卡片的一条目；服务端可能在限额之外追加当前选中项
type RankedItem struct {
	Code           string  `json:"code"`
	Label          string  `json:"label"`
	DepartmentCode *string `json:"department_code"`
	SalesCount     int     `json:"sales_count"`
	TotalValue     float64 `json:"total_value"`
	IsSelected     bool    `json:"is_selected"`
	Rank           int     `json:"rank"`
}

// RankedList：市镇成交排行
type RankedList struct {
	ScopeLabel string       `json:"scope_label"`
	Limit      int          `json:"limit"`
	Items      []RankedItem `json:"items"`
}

// TimePoint：按自然月聚合的一个时间点，Month 为 ISO 日期（当月首日）
type TimePoint struct {
	Month      string  `json:"month"`
	SalesCount int     `json:"sales_count"`
	TotalValue float64 `json:"total_value"`
}

// TimeSeries：月度走势
type TimeSeries struct {
	Points []TimePoint `json:"points"`
}

// BoxStats：服务端预计算的四分位/须线/离群统计
type BoxStats struct {
	Min         float64   `json:"min"`
	Q1          float64   `json:"q1"`
	Median      float64   `json:"median"`
	Q3          float64   `json:"q3"`
	Max         float64   `json:"max"`
	WhiskerLow  float64   `json:"whiskerLow"`
	WhiskerHigh float64   `json:"whiskerHigh"`
	Outliers    []float64 `json:"outliers"`
	RawMin      float64   `json:"rawMin"`
	RawMax      float64   `json:"rawMax"`
	Count       int       `json:"count"`
}

// BoxItem：一个类型（住宅/公寓等）的价格离散统计
type BoxItem struct {
	Label string   `json:"label"`
	Stats BoxStats `json:"stats"`
}

// DispersionSet：单价箱线图数据集
type DispersionSet struct {
	Unit  string    `json:"unit"`
	Items []BoxItem `json:"items"`
}

// StackBand：堆叠构成图中的一个子类型序列
type StackBand struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
	Total int    `json:"total"`
}

// StackedSeries：按类型分组、按交易性质堆叠的构成图
type StackedSeries struct {
	Labels []string    `json:"labels"`
	Series []StackBand `json:"series"`
}

// ChartsPayload：图表端点载荷，四个独立聚合共享同一选择上下文
type ChartsPayload struct {
	Selection     Selection      `json:"selection"`
	Metrics       Metrics        `json:"metrics"`
	TypeTotals    map[string]int `json:"type_totals"`
	TopCommunes   RankedList     `json:"top_communes"`
	TimeSeries    TimeSeries     `json:"time_series"`
	PriceBoxplot  DispersionSet  `json:"price_boxplot"`
	MutationStack StackedSeries  `json:"mutation_stack"`
}
