package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dvf-dashboard/internal/dvf"
	"dvf-dashboard/internal/filter"
	"dvf-dashboard/internal/logger"
)

// 与服务端排行逻辑一致的限额边界
const (
	DefaultTopLimit = 10
	minTopLimit     = 3
	maxTopLimit     = 20
)

// ErrStatus：非成功状态码；上层据此把视图置为 error 态
var ErrStatus = errors.New("unexpected status")

// Client：三个只读聚合端点的 HTTP 客户端
// 背景：路径可配置以适配不同部署前缀；解码在 dvf 包的边界完成，
// 本层只负责取字节与缓存短路。
type Client struct {
	base         string
	heatmapPath  string
	communesPath string
	chartsPath   string
	hc           *http.Client
	cache        *Cache
}

// NewClient：构造客户端；hc 为空时使用 8s 超时的默认客户端
func NewClient(base string, hc *http.Client, cache *Cache) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{
		base:         base,
		heatmapPath:  "/api/heatmap/",
		communesPath: "/api/communes/",
		chartsPath:   "/api/charts/",
		hc:           hc,
		cache:        cache,
	}
}

// WithPaths：覆盖端点路径（部署前缀不同步时使用）
func (c *Client) WithPaths(heatmap, communes, charts string) *Client {
	if heatmap != "" {
		c.heatmapPath = heatmap
	}
	if communes != "" {
		c.communesPath = communes
	}
	if charts != "" {
		c.chartsPath = charts
	}
	return c
}

// Heatmap：抓取地图视图载荷
func (c *Client) Heatmap(ctx context.Context, sel filter.Selection) (*dvf.HeatmapPayload, error) {
	body, err := c.get(ctx, c.heatmapPath, sel.Params())
	if err != nil {
		return nil, err
	}
	return dvf.DecodeHeatmap(bytes.NewReader(body))
}

// CommuneOptions：抓取级联选择器的市镇候选项
func (c *Client) CommuneOptions(ctx context.Context, department string) (*dvf.OptionsPayload, error) {
	q := url.Values{}
	q.Set("department", department)
	body, err := c.get(ctx, c.communesPath, q)
	if err != nil {
		return nil, err
	}
	return dvf.DecodeCommuneOptions(bytes.NewReader(body))
}

// Charts：抓取四个图表聚合共享的载荷
// 约束：top_limit 客户端钳制在 [3,20]，与服务端排行限额一致
func (c *Client) Charts(ctx context.Context, sel filter.Selection, topLimit int) (*dvf.ChartsPayload, error) {
	if topLimit <= 0 {
		topLimit = DefaultTopLimit
	}
	if topLimit < minTopLimit {
		topLimit = minTopLimit
	}
	if topLimit > maxTopLimit {
		topLimit = maxTopLimit
	}
	q := sel.Params()
	q.Set("top_limit", strconv.Itoa(topLimit))
	body, err := c.get(ctx, c.chartsPath, q)
	if err != nil {
		return nil, err
	}
	return dvf.DecodeCharts(bytes.NewReader(body))
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	key := path + "?" + q.Encode()
	if body, ok := c.cache.get(ctx, key); ok {
		logger.L().Debug("fetch_cache_hit", "key", key)
		return body, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+key, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d for %s", ErrStatus, resp.StatusCode, path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.cache.set(ctx, key, body)
	return body, nil
}
