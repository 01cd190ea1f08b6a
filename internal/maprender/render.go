// 包 maprender：把热力图载荷转换为外部地图面的加权标记
// 背景：地图库的绘制原语在核心之外，这里只产出标记几何/样式/弹窗与视口指令；
// 数据量在市镇级也只有数千实体，因此每次渲染整体清除重绘，不做增量比对。
package maprender

import (
	"fmt"
	"html"
	"math"
	"strings"

	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/logger"
)

// Marker：一个可绘制标记；Popup 为已转义的 HTML 片段
type Marker struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	FillOpacity float64 `json:"fill_opacity"`
	Popup       string  `json:"popup"`
}

// Bounds：经纬度包围盒
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// MapSurface：外部地图面的能力接口
type MapSurface interface {
	ClearMarkers()
	AddMarker(m Marker)
	FitBounds(b Bounds, paddingPx int)
	ResetView(b Bounds)
}

// FitPaddingPx：视口适配的固定内边距
const FitPaddingPx = 40

// FranceBounds：零可绘制点时回退的全国默认视野
var FranceBounds = Bounds{MinLat: 41.2, MinLon: -5.3, MaxLat: 51.3, MaxLon: 9.8}

// 颜色分为三档而非连续渐变，保证肉眼可分辨
const (
	colorDark   = "#b71c1c"
	colorMedium = "#e53935"
	colorLight  = "#ef9a9a"
)

// Renderer：地图渲染器
type Renderer struct {
	surface MapSurface
}

func New(surface MapSurface) *Renderer {
	return &Renderer{surface: surface}
}

// Render：全量重绘标记并调整视口，返回实际绘制的标记数
// 约束：无质心的点不绘制（汇总计数由服务端负责，客户端不补偿）；
// 半径按 sqrt(占比) 压缩动态范围，避免头部市镇淹没其余标记。
func (r *Renderer) Render(points []dvf.Point, summary dvf.Summary) int {
	r.surface.ClearMarkers()
	maxSales := summary.MaxSales
	if maxSales < 1 {
		maxSales = 1
	}
	drawn := 0
	var bb Bounds
	for _, p := range points {
		if p.Centroid == nil {
			continue
		}
		ratio := float64(p.SalesCount) / float64(maxSales)
		m := Marker{
			Code:        p.Code,
			Name:        p.Name,
			Lat:         p.Centroid.Lat,
			Lon:         p.Centroid.Lon,
			Radius:      baseRadius(p.Level) + math.Sqrt(ratio)*spread(p.Level),
			Color:       colorTier(ratio),
			FillOpacity: 0.25 + 0.45*ratio,
			Popup:       popupHTML(p),
		}
		r.surface.AddMarker(m)
		if drawn == 0 {
			bb = Bounds{MinLat: m.Lat, MinLon: m.Lon, MaxLat: m.Lat, MaxLon: m.Lon}
		} else {
			bb.MinLat = math.Min(bb.MinLat, m.Lat)
			bb.MinLon = math.Min(bb.MinLon, m.Lon)
			bb.MaxLat = math.Max(bb.MaxLat, m.Lat)
			bb.MaxLon = math.Max(bb.MaxLon, m.Lon)
		}
		drawn++
	}
	if drawn == 0 {
		r.surface.ResetView(FranceBounds)
	} else {
		r.surface.FitBounds(bb, FitPaddingPx)
	}
	logger.L().Debug("map_render", "level", summary.Level, "points", len(points), "drawn", drawn)
	return drawn
}

func baseRadius(level dvf.Level) float64 {
	if level == dvf.LevelDepartment {
		return 6
	}
	return 4
}

func spread(level dvf.Level) float64 {
	if level == dvf.LevelDepartment {
		return 22
	}
	return 16
}

func colorTier(ratio float64) string {
	switch {
	case ratio >= 0.66:
		return colorDark
	case ratio >= 0.33:
		return colorMedium
	default:
		return colorLight
	}
}

// popupHTML：按层级组装弹窗内容；所有来自数据的文本字段先转义
func popupHTML(p dvf.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<strong>%s</strong> (%s)", html.EscapeString(p.Name), html.EscapeString(p.Code))
	fmt.Fprintf(&b, "<br>Ventes : %d", p.SalesCount)
	switch {
	case p.Department != nil:
		fmt.Fprintf(&b, "<br>Communes : %d", p.Department.CommuneCount)
		fmt.Fprintf(&b, "<br>Adresses : %d", p.AddressCount)
	case p.Commune != nil:
		fmt.Fprintf(&b, "<br>Adresses : %d", p.AddressCount)
		if len(p.Commune.PostalCodes) > 0 {
			escaped := make([]string, len(p.Commune.PostalCodes))
			for i, pc := range p.Commune.PostalCodes {
				escaped[i] = html.EscapeString(pc)
			}
			fmt.Fprintf(&b, "<br>Codes postaux : %s", strings.Join(escaped, ", "))
		}
	}
	return b.String()
}
