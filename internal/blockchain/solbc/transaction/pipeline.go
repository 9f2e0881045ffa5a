// internal/blockchain/solbc/transaction/pipeline.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

// Pipeline собирает, подписывает, отправляет и дожидается подтверждения транзакции.
// Запись отправляется ровно один раз: повторять после отказа или таймаута решает вызывающий.
type Pipeline struct {
	chain     Chain
	logger    *zap.Logger
	config    Config
	validator *Validator
	monitor   *Monitor
	metrics   *Metrics
}

func NewPipeline(chain Chain, logger *zap.Logger, config Config, metrics *Metrics) *Pipeline {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	monitor := NewMonitor(chain, logger, config)
	return &Pipeline{
		chain:     chain,
		logger:    logger.Named("tx-pipeline"),
		config:    monitor.config,
		validator: NewValidator(logger),
		monitor:   monitor,
		metrics:   metrics,
	}
}

// Monitor возвращает монитор статусов, используется для сверки после таймаута
func (p *Pipeline) Monitor() *Monitor {
	return p.monitor
}

// Submit выполняет полный цикл отправки.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	op := req.Operation
	if op == "" {
		op = "unknown"
	}
	log := p.logger.With(zap.String("operation", op))

	if req.Wallet == nil || !req.Wallet.Connected() {
		p.metrics.TrackTransaction(op, "wallet_not_connected", start)
		return nil, blockchain.ErrWalletNotConnected
	}

	tx, err := p.prepare(ctx, req)
	if err != nil {
		p.metrics.TrackTransaction(op, outcomeOf(err), start)
		return nil, err
	}

	// Подпись известна до отправки: первая подпись принадлежит плательщику
	signature := tx.Signatures[0]
	log = log.With(zap.String("signature", signature.String()))

	if _, err := p.chain.SendTransaction(ctx, tx); err != nil {
		var subErr *blockchain.SubmissionError
		if errors.As(err, &subErr) {
			p.metrics.TrackTransaction(op, StatusFailed, start)
			log.Warn("Transaction rejected", zap.String("reason", subErr.Reason))
			return nil, err
		}
		// Запрос мог дойти до сети: исход неизвестен
		p.metrics.TrackTransaction(op, "timeout", start)
		log.Warn("Transaction send outcome unknown", zap.Error(err))
		return nil, blockchain.NewTimeout(signature.String(), err)
	}
	log.Debug("Transaction sent")

	status, err := p.monitor.AwaitConfirmation(ctx, signature, req.ConfirmTimeout)
	if err != nil {
		p.metrics.TrackTransaction(op, "timeout", start)
		log.Warn("Transaction confirmation not observed", zap.Error(err))
		return nil, blockchain.NewTimeout(signature.String(), err)
	}

	if status.Status == StatusFailed {
		p.metrics.TrackTransaction(op, StatusFailed, start)
		log.Warn("Transaction failed on chain", zap.String("error", status.Error))
		return nil, blockchain.NewRejected(status.Error, signature.String(), nil)
	}

	p.metrics.TrackTransaction(op, status.Status, start)
	log.Info("Transaction confirmed",
		zap.String("status", status.Status),
		zap.Uint64("slot", status.Slot),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Signature: signature, Slot: status.Slot, Status: status}, nil
}

// prepare получает свежий blockhash, собирает транзакцию и собирает все подписи
func (p *Pipeline) prepare(ctx context.Context, req Request) (*solana.Transaction, error) {
	blockhash, err := p.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := NewBuilder().
		AddInstruction(req.Instructions...).
		SetFeePayer(req.Wallet.PublicKey()).
		SetRecentBlockhash(blockhash).
		Build()
	if err != nil {
		return nil, err
	}

	if len(req.LocalSigners) > 0 {
		if err := wallet.PartialSign(tx, req.LocalSigners...); err != nil {
			return nil, fmt.Errorf("failed to sign with local keys: %w", err)
		}
	}

	signed, err := req.Wallet.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := p.validator.ValidateTransaction(signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func outcomeOf(err error) string {
	return string(blockchain.KindOf(err))
}
