// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"dvf-dashboard/internal/api"
	"dvf-dashboard/internal/dashboard"
	"dvf-dashboard/internal/fetch"
	"dvf-dashboard/internal/logger"
	"dvf-dashboard/internal/metrics"
	"dvf-dashboard/internal/present"
	"dvf-dashboard/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")

	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	upstream := os.Getenv("DVF_API_BASE")
	if upstream == "" {
		upstream = "http://127.0.0.1:8000"
	}
	l.Debug("config_upstream", "base", upstream)

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	cacheTTL := 10 * time.Minute
	if s := os.Getenv("CACHE_TTL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cacheTTL = time.Duration(n) * time.Second
		}
	}
	fetchTimeout := 8 * time.Second
	if s := os.Getenv("FETCH_TIMEOUT_MS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			fetchTimeout = time.Duration(n) * time.Millisecond
		}
	}
	topLimit := fetch.DefaultTopLimit
	if s := os.Getenv("DVF_TOP_LIMIT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			topLimit = n
		}
	}

	client := fetch.NewClient(upstream, &http.Client{Timeout: fetchTimeout}, fetch.NewCache(rc, cacheTTL)).
		WithPaths(os.Getenv("DVF_HEATMAP_PATH"), os.Getenv("DVF_COMMUNES_PATH"), os.Getenv("DVF_CHARTS_PATH"))

	// 渲染面全部落在内存快照上，经 /dashboard 对外呈现
	snap := api.NewSnapshot()
	boxplotAvailable := os.Getenv("BOXPLOT_DISABLE") != "true"
	surfaces := dashboard.Surfaces{
		Selector:       snap.Selector(),
		Map:            snap.MapSurface(),
		MapPlaceholder: snap.MapPlaceholder(),
		Ranked:         snap.Card("top_communes"),
		TimeSeries:     snap.Card("time_series"),
		Dispersion:     snap.Card("price_boxplot"),
		Stacked:        snap.Card("mutation_stack"),
		KPI: []present.KPISurface{
			snap.KPI("header"),
			snap.KPI("summary"),
		},
		BoxplotAvailable: boxplotAvailable,
	}

	d := dashboard.New(client, surfaces, topLimit)
	go d.Run(context.Background())
	l.Info("dashboard_started", "top_limit", topLimit, "boxplot", boxplotAvailable)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(d, snap)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	s := &http.Server{Addr: addr, Handler: handler}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
