package api

import (
	"encoding/json"
	"net/http"

	"dvf-dashboard/internal/charts"
	"dvf-dashboard/internal/filter"
)

// intentRequest：用户意图的线格式
type intentRequest struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
}

type toggleRequest struct {
	Metric string `json:"metric"`
}

// Dispatcher：编排循环的投递入口（dashboard.Dashboard 满足）
type Dispatcher interface {
	Dispatch(it filter.Intent)
	ToggleRankedMetric(m charts.RankedMetric)
	Selection() filter.Selection
	RankedMetricSelected() charts.RankedMetric
}

// BuildRoutes：构建并返回 API 路由，独立 ServeMux 便于在主入口挂载
// 背景：意图经 HTTP 投递到事件循环后立即返回 202，最终状态通过轮询
// /dashboard 快照获得；这保持了"单循环串行应用"的并发模型不被破坏。
func BuildRoutes(d Dispatcher, snap *Snapshot) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		st := snap.State()
		sel := d.Selection()
		out := map[string]any{
			"selection": map[string]string{
				"department": sel.Department,
				"commune":    sel.Commune,
			},
			"ranked_metric": string(d.RankedMetricSelected()),
			"state":         st,
		}
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_ = json.NewEncoder(w).Encode(out)
	})

	apiMux.HandleFunc("/intent", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req intentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		kind := filter.IntentKind(req.Kind)
		switch kind {
		case filter.SelectDepartment, filter.SelectCommune, filter.SubmitFilters:
		default:
			http.Error(w, "unknown intent kind", http.StatusBadRequest)
			return
		}
		d.Dispatch(filter.Intent{Kind: kind, Code: req.Code})
		w.WriteHeader(http.StatusAccepted)
	})

	apiMux.HandleFunc("/ranked-metric", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		m := charts.RankedMetric(req.Metric)
		if m != charts.MetricSales && m != charts.MetricValue {
			http.Error(w, "unknown metric", http.StatusBadRequest)
			return
		}
		d.ToggleRankedMetric(m)
		w.WriteHeader(http.StatusAccepted)
	})

	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return apiMux
}
