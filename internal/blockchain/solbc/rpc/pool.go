// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"errors"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// NewPool создает новый пул клиентов по списку URL
func NewPool(urls []string, logger *zap.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoActiveClients
	}

	clients := make([]*NodeClient, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, NewNodeClient(url))
	}

	return &Pool{
		clients:  clients,
		logger:   logger.Named("rpc-pool"),
		cooldown: DefaultCooldown,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}, nil
}

// WithTimeout задает таймаут одного обращения к узлу
func (p *Pool) WithTimeout(d time.Duration) *Pool {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// Current возвращает URL узла, который будет использован следующим
func (p *Pool) Current() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.clients[p.currIndex].URL
}

// Stats возвращает метрики по всем узлам
func (p *Pool) Stats() []NodeStats {
	out := make([]NodeStats, 0, len(p.clients))
	for _, c := range p.clients {
		out = append(out, c.Stats())
	}
	return out
}

// next возвращает активный клиент начиная с текущего индекса.
// Если все узлы неактивны, возвращает текущий: лучше попробовать, чем сразу отказать.
func (p *Pool) next() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := p.now()
	for i := 0; i < len(p.clients); i++ {
		idx := (p.currIndex + i) % len(p.clients)
		if p.clients[idx].reviveIfCooled(now, p.cooldown) {
			p.currIndex = idx
			return p.clients[idx]
		}
	}
	return p.clients[p.currIndex]
}

// advance переключает пул на следующий узел после сбоя
func (p *Pool) advance(failed *NodeClient) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.clients[p.currIndex] == failed {
		p.currIndex = (p.currIndex + 1) % len(p.clients)
	}
}

// Execute выполняет операцию на узлах пула, переключаясь на следующий при сетевой ошибке.
// Ошибки уровня приложения (ответ JSON-RPC с ошибкой, not found) возвращаются сразу.
// Каждый узел пробуется не более одного раза за вызов.
func (p *Pool) Execute(ctx context.Context, method string, operation func(context.Context, *solanarpc.Client) error) error {
	var lastErr error
	for attempt := 0; attempt < len(p.clients); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := p.next()
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := operation(callCtx, node.Client)
		cancel()

		if err == nil || !IsNodeFailure(err) {
			node.UpdateMetrics(true, time.Since(start))
			return err
		}

		node.UpdateMetrics(false, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = NewError(err, node.URL, method)
		node.markFailed(p.now())
		p.advance(node)

		p.logger.Debug("RPC request failed, trying next node",
			zap.String("url", node.URL),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	p.logger.Warn("All RPC nodes failed", zap.String("method", method), zap.Error(lastErr))
	return lastErr
}

// IsNodeFailure сообщает, вызвана ли ошибка недоступностью узла, а не ответом сети.
func IsNodeFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, solanarpc.ErrNotFound) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	return !errors.As(err, &rpcErr)
}

// ExecuteOnce выполняет операцию ровно на одном узле, без переключения.
// Используется для отправки транзакций: повтор записи решает вызывающий код.
func (p *Pool) ExecuteOnce(ctx context.Context, method string, operation func(context.Context, *solanarpc.Client) error) error {
	node := p.next()
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := operation(callCtx, node.Client)
	if err == nil || !IsNodeFailure(err) {
		node.UpdateMetrics(true, time.Since(start))
		return err
	}

	node.UpdateMetrics(false, time.Since(start))
	if ctx.Err() == nil {
		node.markFailed(p.now())
		p.advance(node)
	}
	return NewError(err, node.URL, method)
}
