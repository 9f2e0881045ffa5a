// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	// Через сколько узел, помеченный неактивным, снова участвует в ротации
	DefaultCooldown = 15 * time.Second
)

// NodeClient представляет отдельный RPC узел
type NodeClient struct {
	Client   *rpc.Client
	URL      string
	active   bool
	failedAt time.Time
	mutex    sync.RWMutex
	metrics  *metrics
}

// metrics содержит метрики производительности RPC узла
type metrics struct {
	successCount uint64
	errorCount   uint64
	latency      time.Duration
	mutex        sync.RWMutex
}

// NodeStats - снимок метрик узла
type NodeStats struct {
	URL          string        `json:"url"`
	Active       bool          `json:"active"`
	SuccessCount uint64        `json:"successCount"`
	ErrorCount   uint64        `json:"errorCount"`
	AvgLatency   time.Duration `json:"avgLatency"`
}

// Pool представляет пул RPC клиентов с переключением при сбоях
type Pool struct {
	clients   []*NodeClient
	logger    *zap.Logger
	currIndex int
	cooldown  time.Duration
	timeout   time.Duration
	mutex     sync.Mutex
	now       func() time.Time
}
