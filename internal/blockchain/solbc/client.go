// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	solrpc "github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/rpc"
)

// Options задает поведение клиента
type Options struct {
	Commitment     rpc.CommitmentType
	ReadRetries    uint
	RequestTimeout time.Duration
	// Начальная задержка между повторами чтения
	RetryInterval time.Duration
}

// DefaultOptions возвращает опции по умолчанию
func DefaultOptions() Options {
	return Options{
		Commitment:     rpc.CommitmentConfirmed,
		ReadRetries:    3,
		RequestTimeout: solrpc.DefaultTimeout,
		RetryInterval:  250 * time.Millisecond,
	}
}

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	pool     *solrpc.Pool
	opts     Options
	analyzer *ErrorAnalyzer
	logger   *zap.Logger
}

// NewClient создаёт новый клиент, принимая список RPC URL и логгер через dependency injection.
func NewClient(rpcURLs []string, opts Options, logger *zap.Logger) (*Client, error) {
	pool, err := solrpc.NewPool(rpcURLs, logger)
	if err != nil {
		return nil, err
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.ReadRetries == 0 {
		opts.ReadRetries = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultOptions().RetryInterval
	}
	pool.WithTimeout(opts.RequestTimeout)

	return &Client{
		pool:     pool,
		opts:     opts,
		analyzer: NewErrorAnalyzer(logger),
		logger:   logger.Named("solbc-client"),
	}, nil
}

// Endpoint возвращает URL текущего RPC узла
func (c *Client) Endpoint() string {
	return c.pool.Current()
}

// NodeStats возвращает метрики узлов пула
func (c *Client) NodeStats() []solrpc.NodeStats {
	return c.pool.Stats()
}

// read выполняет чтение с ограниченным числом повторов.
// Ответы сети (RPCError, not found) не повторяются.
func read[T any](ctx context.Context, c *Client, method string, op func(context.Context, *rpc.Client) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInterval
	policy.MaxInterval = c.opts.RetryInterval * 8

	operation := func() (T, error) {
		var out T
		err := c.pool.Execute(ctx, method, func(callCtx context.Context, client *rpc.Client) error {
			var err error
			out, err = op(callCtx, client)
			return err
		})
		if err != nil && !solrpc.IsNodeFailure(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying RPC read", zap.String("method", method), zap.Duration("backoff", d), zap.Error(err))
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.opts.ReadRetries),
		backoff.WithNotify(notify))
	if err != nil && solrpc.IsNodeFailure(err) {
		return out, fmt.Errorf("%w: %s: %w", blockchain.ErrNetwork, method, err)
	}
	return out, err
}

// GetLatestBlockhash получает последний blockhash. Кэширование запрещено: токен берется перед каждой сборкой.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	hash, err := read(ctx, c, "getLatestBlockhash", func(ctx context.Context, client *rpc.Client) (solana.Hash, error) {
		result, err := client.GetLatestBlockhash(ctx, c.opts.Commitment)
		if err != nil {
			return solana.Hash{}, err
		}
		if result == nil || result.Value == nil {
			return solana.Hash{}, fmt.Errorf("empty blockhash response")
		}
		return result.Value.Blockhash, nil
	})
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return hash, nil
}

// SendTransaction отправляет транзакцию ровно один раз.
// Отказ сети превращается в SubmissionRejected с дословной причиной,
// сбой транспорта возвращается как ErrNetwork.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.pool.ExecuteOnce(ctx, "sendTransaction", func(callCtx context.Context, client *rpc.Client) error {
		var err error
		sig, err = client.SendTransactionWithOpts(callCtx, tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: c.opts.Commitment,
		})
		return err
	})
	if err == nil {
		return sig, nil
	}

	var expected string
	if len(tx.Signatures) > 0 {
		expected = tx.Signatures[0].String()
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		reason := c.analyzer.RejectReason(err)
		c.logger.Warn("Transaction rejected", zap.String("reason", reason), zap.String("signature", expected))
		return solana.Signature{}, blockchain.NewRejected(reason, expected, err)
	}

	c.logger.Error("SendTransaction error", zap.String("signature", expected), zap.Error(err))
	return solana.Signature{}, fmt.Errorf("%w: sendTransaction: %w", blockchain.ErrNetwork, err)
}

// GetAccountInfo получает информацию об аккаунте. Отсутствие аккаунта не ошибка.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.Account, error) {
	account, err := read(ctx, c, "getAccountInfo", func(ctx context.Context, client *rpc.Client) (*rpc.Account, error) {
		result, err := client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.opts.Commitment,
		})
		if err != nil {
			return nil, err
		}
		return result.Value, nil
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return account, nil
}

// GetProgramAccounts получает все аккаунты программы с фильтрами
func (c *Client) GetProgramAccounts(
	ctx context.Context,
	programID solana.PublicKey,
	filters []rpc.RPCFilter,
) (rpc.GetProgramAccountsResult, error) {
	opts := rpc.GetProgramAccountsOpts{
		Commitment: c.opts.Commitment,
		Encoding:   solana.EncodingBase64,
		Filters:    filters,
	}

	accounts, err := read(ctx, c, "getProgramAccounts", func(ctx context.Context, client *rpc.Client) (rpc.GetProgramAccountsResult, error) {
		return client.GetProgramAccountsWithOpts(ctx, programID, &opts)
	})
	if err != nil {
		c.logger.Debug("GetProgramAccounts error",
			zap.String("program_id", programID.String()),
			zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

// GetSignaturesForAddress возвращает последние подписи, от новых к старым
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Commitment: c.opts.Commitment,
	}
	if limit > 0 {
		opts.Limit = &limit
	}

	sigs, err := read(ctx, c, "getSignaturesForAddress", func(ctx context.Context, client *rpc.Client) ([]*rpc.TransactionSignature, error) {
		return client.GetSignaturesForAddressWithOpts(ctx, address, opts)
	})
	if err != nil {
		c.logger.Debug("GetSignaturesForAddress error",
			zap.String("address", address.String()),
			zap.Error(err))
		return nil, err
	}
	return sigs, nil
}

// GetTransaction получает подтвержденную транзакцию по подписи
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.opts.Commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	result, err := read(ctx, c, "getTransaction", func(ctx context.Context, client *rpc.Client) (*rpc.GetTransactionResult, error) {
		return client.GetTransaction(ctx, signature, opts)
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		c.logger.Debug("GetTransaction error",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	result, err := read(ctx, c, "getSignatureStatuses", func(ctx context.Context, client *rpc.Client) (*rpc.GetSignatureStatusesResult, error) {
		return client.GetSignatureStatuses(ctx, true, signatures...)
	})
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetVersion возвращает версию узла
func (c *Client) GetVersion(ctx context.Context) (*rpc.GetVersionResult, error) {
	return read(ctx, c, "getVersion", func(ctx context.Context, client *rpc.Client) (*rpc.GetVersionResult, error) {
		return client.GetVersion(ctx)
	})
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	if commitment == "" {
		commitment = c.opts.Commitment
	}
	balance, err := read(ctx, c, "getBalance", func(ctx context.Context, client *rpc.Client) (uint64, error) {
		result, err := client.GetBalance(ctx, pubkey, commitment)
		if err != nil {
			return 0, err
		}
		return result.Value, nil
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return balance, nil
}

// RequestAirdrop запрашивает lamports на devnet. Запись, поэтому без повторов.
func (c *Client) RequestAirdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	err := c.pool.ExecuteOnce(ctx, "requestAirdrop", func(callCtx context.Context, client *rpc.Client) error {
		var err error
		sig, err = client.RequestAirdrop(callCtx, pubkey, lamports, c.opts.Commitment)
		return err
	})
	if err != nil {
		c.logger.Error("RequestAirdrop error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		if solrpc.IsNodeFailure(err) {
			return solana.Signature{}, fmt.Errorf("%w: requestAirdrop: %w", blockchain.ErrNetwork, err)
		}
		return solana.Signature{}, err
	}
	return sig, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
