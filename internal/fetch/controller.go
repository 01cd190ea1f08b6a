package fetch

import (
	"context"
	"sync"
	"time"

	"dvf-dashboard/internal/logger"
	"dvf-dashboard/internal/metrics"
)

// View：逻辑视图标识，每个视图维护独立的请求代际
type View string

const (
	ViewMap            View = "map"
	ViewCharts         View = "charts"
	ViewCommuneOptions View = "commune_options"
)

// FetchFunc：一次抓取；ctx 被取消表示该请求已被更新的请求取代
type FetchFunc func(ctx context.Context) (any, error)

// Result：一次抓取的结果，携带发起时的代际供应用时校验
type Result struct {
	View    View
	Gen     uint64
	Payload any
	Err     error
}

// Controller：竞态安全抓取控制器
// 背景：每次过滤变更为每个视图发起一次抓取；发起即令代际自增并尽力取消
// 上一个在途请求。取消只是资源优化，正确性由应用侧的代际校验保证：
// 过期响应无论成败一律静默丢弃，不回退 UI、不混拼两次选择的数据。
// 约束：结果统一汇入单一通道，由编排循环串行消费；本层不触碰任何 UI 状态。
type Controller struct {
	mu     sync.Mutex
	gen    map[View]uint64
	cancel map[View]context.CancelFunc
	out    chan Result
}

func NewController() *Controller {
	return &Controller{
		gen:    make(map[View]uint64),
		cancel: make(map[View]context.CancelFunc),
		out:    make(chan Result, 16),
	}
}

// Issue：为视图发起新一代抓取，返回新代际
// 约束：必须从编排循环调用以保证“最后发起者胜出”的发起顺序与意图顺序一致
func (c *Controller) Issue(ctx context.Context, v View, fn FetchFunc) uint64 {
	c.mu.Lock()
	c.gen[v]++
	g := c.gen[v]
	if prev := c.cancel[v]; prev != nil {
		prev()
	}
	cctx, cancel := context.WithCancel(ctx)
	c.cancel[v] = cancel
	c.mu.Unlock()

	metrics.ViewRequestsTotal.WithLabelValues(string(v)).Inc()
	logger.L().Debug("fetch_issue", "view", v, "gen", g)
	go func() {
		t0 := time.Now()
		payload, err := fn(cctx)
		metrics.ViewDurationMs.WithLabelValues(string(v)).Observe(float64(time.Since(t0).Milliseconds()))
		c.out <- Result{View: v, Gen: g, Payload: payload, Err: err}
	}()
	return g
}

// Results：抓取结果通道，编排循环在此与意图通道一起 select
func (c *Controller) Results() <-chan Result { return c.out }

// Current：判断代际是否仍为该视图的最新一代（应用响应前的权威校验）
func (c *Controller) Current(v View, g uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[v] == g
}

// Stale：Current 的取反便捷形式；过期结果同时计入指标
func (c *Controller) Stale(r Result) bool {
	if c.Current(r.View, r.Gen) {
		return false
	}
	metrics.ViewStaleTotal.WithLabelValues(string(r.View)).Inc()
	logger.L().Debug("fetch_stale_discard", "view", r.View, "gen", r.Gen)
	return true
}

// Generation：当前代际（测试与诊断用）
func (c *Controller) Generation(v View) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[v]
}
