// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	"sync/atomic"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// NewNodeClient создает новый экземпляр NodeClient
func NewNodeClient(url string) *NodeClient {
	return &NodeClient{
		Client:  solanarpc.New(url),
		URL:     url,
		active:  true,
		metrics: &metrics{},
	}
}

// Stats возвращает текущие метрики узла
func (c *NodeClient) Stats() NodeStats {
	c.metrics.mutex.RLock()
	defer c.metrics.mutex.RUnlock()

	return NodeStats{
		URL:          c.URL,
		Active:       c.IsActive(),
		SuccessCount: atomic.LoadUint64(&c.metrics.successCount),
		ErrorCount:   atomic.LoadUint64(&c.metrics.errorCount),
		AvgLatency:   c.metrics.latency,
	}
}

// markFailed выводит узел из ротации
func (c *NodeClient) markFailed(at time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.active = false
	c.failedAt = at
}

// IsActive возвращает текущий статус активности узла
func (c *NodeClient) IsActive() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.active
}

// reviveIfCooled возвращает узел в ротацию, если прошел cooldown
func (c *NodeClient) reviveIfCooled(now time.Time, cooldown time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.active && now.Sub(c.failedAt) >= cooldown {
		c.active = true
	}
	return c.active
}

// UpdateMetrics обновляет метрики узла
func (c *NodeClient) UpdateMetrics(success bool, latency time.Duration) {
	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	if success {
		atomic.AddUint64(&c.metrics.successCount, 1)
	} else {
		atomic.AddUint64(&c.metrics.errorCount, 1)
	}

	if c.metrics.latency == 0 {
		c.metrics.latency = latency
		return
	}
	c.metrics.latency = (c.metrics.latency + latency) / 2
}
