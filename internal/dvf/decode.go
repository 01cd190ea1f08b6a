package dvf

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// rawSummary：热力图摘要的线上形态，可空数值以指针承接
type rawSummary struct {
	Level       string     `json:"level"`
	EntityCount int        `json:"entity_count"`
	MaxSales    int        `json:"max_sales"`
	Department  *EntityRef `json:"department"`
	Commune     *EntityRef `json:"commune"`
	Metrics
}

// rawPoint：热力图点的线上形态；层级相关字段全部可空，由解码按摘要层级收敛
type rawPoint struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	CentroidLat    *float64  `json:"centroid_lat"`
	CentroidLon    *float64  `json:"centroid_lon"`
	AddressCount   int       `json:"address_count"`
	SalesCount     int       `json:"sales_count"`
	CommuneCount   *int      `json:"commune_count"`
	DepartmentCode *string   `json:"department_code"`
	PostalCodes    *[]string `json:"postal_codes"`
}

type rawHeatmap struct {
	Summary rawSummary `json:"summary"`
	Points  []rawPoint `json:"points"`
}

// DecodeHeatmap：解码并归一化热力图载荷
// 为什么：把层级相关的松散字段在边界处收敛成带标签的 Point 变体，
// 渲染层据此静态分派弹窗内容，不再逐字段判空。
// 约束：点的层级取自摘要；出现与层级矛盾的字段视为契约破坏并报错。
func DecodeHeatmap(r io.Reader) (*HeatmapPayload, error) {
	var raw rawHeatmap
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("heatmap decode: %w", err)
	}
	level, err := parseLevel(raw.Summary.Level)
	if err != nil {
		return nil, fmt.Errorf("heatmap summary: %w", err)
	}
	out := &HeatmapPayload{
		Summary: Summary{
			Level:       level,
			EntityCount: raw.Summary.EntityCount,
			MaxSales:    raw.Summary.MaxSales,
			Metrics:     raw.Summary.Metrics,
			Department:  raw.Summary.Department,
			Commune:     raw.Summary.Commune,
		},
	}
	out.Points = make([]Point, 0, len(raw.Points))
	for i, rp := range raw.Points {
		p, err := normalizePoint(rp, level)
		if err != nil {
			return nil, fmt.Errorf("heatmap point %d (%s): %w", i, rp.Code, err)
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

func normalizePoint(rp rawPoint, level Level) (Point, error) {
	p := Point{
		Code:         rp.Code,
		Name:         rp.Name,
		Level:        level,
		SalesCount:   rp.SalesCount,
		AddressCount: rp.AddressCount,
	}
	if rp.Code == "" {
		return p, fmt.Errorf("missing code")
	}
	if rp.CentroidLat != nil && rp.CentroidLon != nil {
		p.Centroid = &LatLon{Lat: *rp.CentroidLat, Lon: *rp.CentroidLon}
	}
	switch level {
	case LevelDepartment:
		if rp.DepartmentCode != nil || rp.PostalCodes != nil {
			return p, fmt.Errorf("commune fields on department-level point")
		}
		d := DepartmentDetail{}
		if rp.CommuneCount != nil {
			d.CommuneCount = *rp.CommuneCount
		}
		p.Department = &d
	case LevelCommune:
		if rp.CommuneCount != nil {
			return p, fmt.Errorf("department fields on commune-level point")
		}
		c := CommuneDetail{}
		if rp.DepartmentCode != nil {
			c.DepartmentCode = *rp.DepartmentCode
		}
		if rp.PostalCodes != nil {
			c.PostalCodes = *rp.PostalCodes
		}
		p.Commune = &c
	default:
		return p, fmt.Errorf("unexpected level %q for point", level)
	}
	return p, nil
}

// DecodeCommuneOptions：解码级联选择器的候选项载荷
func DecodeCommuneOptions(r io.Reader) (*OptionsPayload, error) {
	var out OptionsPayload
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("commune options decode: %w", err)
	}
	if out.Communes == nil {
		out.Communes = []CommuneOption{}
	}
	return &out, nil
}

// DecodeCharts：解码并归一化图表载荷
// 约束：时间序列按月份升序排序（服务端已排序，这里兜底保证坐标轴锚定假设）；
// 堆叠序列的每条数据长度必须与标签数一致，否则视为契约破坏。
func DecodeCharts(r io.Reader) (*ChartsPayload, error) {
	var out ChartsPayload
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("charts decode: %w", err)
	}
	if _, err := parseLevel(string(out.Selection.Level)); err != nil {
		return nil, fmt.Errorf("charts selection: %w", err)
	}
	if out.TypeTotals == nil {
		out.TypeTotals = map[string]int{}
	}
	if out.TopCommunes.Items == nil {
		out.TopCommunes.Items = []RankedItem{}
	}
	if out.TimeSeries.Points == nil {
		out.TimeSeries.Points = []TimePoint{}
	}
	if out.PriceBoxplot.Items == nil {
		out.PriceBoxplot.Items = []BoxItem{}
	}
	if out.MutationStack.Labels == nil {
		out.MutationStack.Labels = []string{}
	}
	if out.MutationStack.Series == nil {
		out.MutationStack.Series = []StackBand{}
	}
	sort.SliceStable(out.TimeSeries.Points, func(i, j int) bool {
		return out.TimeSeries.Points[i].Month < out.TimeSeries.Points[j].Month
	})
	for _, band := range out.MutationStack.Series {
		if len(band.Data) != len(out.MutationStack.Labels) {
			return nil, fmt.Errorf("mutation stack: series %q has %d values for %d labels",
				band.Label, len(band.Data), len(out.MutationStack.Labels))
		}
	}
	return &out, nil
}

func parseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelNational, LevelDepartment, LevelCommune:
		return Level(s), nil
	case "":
		return "", fmt.Errorf("missing level")
	default:
		return "", fmt.Errorf("unknown level %q", s)
	}
}
