// internal/medweb3/service.go
package medweb3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/events"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

// DefaultProgramID - адрес программы medweb3 на devnet
const DefaultProgramID = "DBL4hbkkDsVHwDBSKGmA4ivneVR8Zf5RHmYHpE1XrR8x"

// Операции (используются в логах, метриках и заданиях)
const (
	OpCreateBatch       = "create_batch"
	OpTransferOwnership = "transfer_ownership"
	OpVerifyBatch       = "verify_batch"
)

// ErrBatchNotFound - аккаунт партии не найден в сети
var ErrBatchNotFound = errors.New("batch account not found")

// Config - настройки сервиса
type Config struct {
	ProgramID solana.PublicKey
	// Проверять отсутствие партии с тем же batch_id перед созданием
	RequireUniqueBatchID bool
	// Таймаут подтверждения, 0 - значение конвейера
	ConfirmTimeout time.Duration
	// devnet, testnet, mainnet-beta; используется в ссылках на explorer
	Cluster string
}

// CreateBatchResult - подтвержденное создание партии
type CreateBatchResult struct {
	Signature    string `json:"signature"`
	BatchAccount string `json:"batchAccount"`
	BatchID      string `json:"batchId"`
	Manufacturer string `json:"manufacturer"`
	Owner        string `json:"owner"`
	Slot         uint64 `json:"slot"`
	ExplorerURL  string `json:"explorerUrl,omitempty"`
}

// TransferResult - подтвержденная передача владения
type TransferResult struct {
	Signature     string `json:"signature"`
	BatchAccount  string `json:"batchAccount"`
	BatchID       string `json:"batchId"`
	PreviousOwner string `json:"previousOwner"`
	NewOwner      string `json:"newOwner"`
	Slot          uint64 `json:"slot"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
}

// VerifyOptions - параметры проверки партии
type VerifyOptions struct {
	// Дополнительно отправить инструкцию VerifyBatch
	OnChain bool
	// Кошелек для отправки инструкции
	Wallet wallet.Wallet
	// batch_id для инструкции, если ссылка - адрес аккаунта
	BatchID string
}

// VerifyResult - результат проверки
type VerifyResult struct {
	Reference      string        `json:"reference"`
	Verified       bool          `json:"verified"`
	BatchAccount   string        `json:"batchAccount,omitempty"`
	Owner          string        `json:"owner,omitempty"`
	OwnedByProgram bool          `json:"ownedByProgram"`
	Batch          *BatchAccount `json:"batch,omitempty"`
	Matches        int           `json:"matches,omitempty"`
	Signature      string        `json:"signature,omitempty"`
}

// ConnectionStatus - состояние подключения к сети
type ConnectionStatus struct {
	Connected       bool    `json:"connected"`
	Endpoint        string  `json:"endpoint"`
	Version         string  `json:"version,omitempty"`
	ProgramID       string  `json:"programId"`
	Wallet          string  `json:"wallet,omitempty"`
	WalletConnected bool    `json:"walletConnected"`
	BalanceLamports uint64  `json:"balanceLamports"`
	BalanceSOL      float64 `json:"balanceSol"`
	Error           string  `json:"error,omitempty"`
}

// FundResult - результат пополнения кошелька
type FundResult struct {
	Wallet        string `json:"wallet"`
	BalanceBefore uint64 `json:"balanceBefore"`
	BalanceAfter  uint64 `json:"balanceAfter"`
	Signature     string `json:"signature,omitempty"`
	Skipped       bool   `json:"skipped"`
}

// Option настраивает Service
type Option func(*Service)

// WithAttestor задает источник поля signature для передачи владения
func WithAttestor(a TransferAttestor) Option {
	return func(s *Service) {
		if a != nil {
			s.attestor = a
		}
	}
}

// WithPublisher подключает шину событий
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithKeyGenerator подменяет генерацию ключа аккаунта партии
func WithKeyGenerator(fn func() (solana.PrivateKey, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.newBatchKey = fn
		}
	}
}

// Service связывает кодировщик, конвейер отправки и чтение состояния.
type Service struct {
	client      blockchain.Client
	pipeline    *transaction.Pipeline
	reader      *Reader
	attestor    TransferAttestor
	publisher   events.Publisher
	config      Config
	logger      *zap.Logger
	newBatchKey func() (solana.PrivateKey, error)
}

// NewService создает сервис. Если pipeline nil, создается конвейер с настройками по умолчанию.
func NewService(client blockchain.Client, pipeline *transaction.Pipeline, config Config, logger *zap.Logger, opts ...Option) *Service {
	if config.ProgramID.IsZero() {
		config.ProgramID = solana.MustPublicKeyFromBase58(DefaultProgramID)
	}
	if config.Cluster == "" {
		config.Cluster = "devnet"
	}
	if pipeline == nil {
		pipeline = transaction.NewPipeline(client, logger, transaction.DefaultConfig(), nil)
	}

	s := &Service{
		client:      client,
		pipeline:    pipeline,
		reader:      NewReader(client, config.ProgramID, logger),
		attestor:    ZeroAttestor{},
		config:      config,
		logger:      logger.Named("medweb3"),
		newBatchKey: solana.NewRandomPrivateKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reader возвращает читатель состояния
func (s *Service) Reader() *Reader {
	return s.reader
}

// ProgramID возвращает адрес программы
func (s *Service) ProgramID() solana.PublicKey {
	return s.config.ProgramID
}

// ExplorerURL возвращает ссылку на транзакцию в explorer
func (s *Service) ExplorerURL(signature string) string {
	return ExplorerURL(signature, s.config.Cluster)
}

// ExplorerURL формирует ссылку на транзакцию для кластера
func ExplorerURL(signature, cluster string) string {
	if signature == "" {
		return ""
	}
	if cluster == "" || cluster == "mainnet-beta" {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", signature, cluster)
}

// CreateBatch регистрирует партию под новым аккаунтом. Результат возвращается только после подтверждения.
// При таймауте ошибка содержит адрес аккаунта партии, по которому можно проверить исход.
func (s *Service) CreateBatch(ctx context.Context, w wallet.Wallet, batchID, manufacturer string) (*CreateBatchResult, error) {
	if w == nil || !w.Connected() {
		return nil, blockchain.ErrWalletNotConnected
	}
	authority := w.PublicKey()
	if manufacturer == "" {
		manufacturer = authority.String()
	}

	ix := CreateBatch{BatchID: batchID, Manufacturer: manufacturer}
	if _, err := Encode(ix); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("batch_id", batchID), zap.String("manufacturer", manufacturer))

	if s.config.RequireUniqueBatchID {
		existing, err := s.reader.FindBatchAccounts(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to check batch id uniqueness: %w", err)
		}
		if len(existing) > 0 {
			log.Warn("Batch id already registered", zap.String("batch_account", existing[0].Address))
			return nil, fmt.Errorf("%w: %s at %s", blockchain.ErrDuplicateBatch, batchID, existing[0].Address)
		}
	}

	batchKey, err := s.newBatchKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch account: %w", err)
	}
	batchAccount := batchKey.PublicKey()
	log = log.With(zap.String("batch_account", batchAccount.String()))

	inst, err := NewProgramInstruction(s.config.ProgramID, ix, Accounts{Authority: authority, BatchAccount: batchAccount})
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.Submit(ctx, transaction.Request{
		Operation:      OpCreateBatch,
		Instructions:   []solana.Instruction{inst},
		Wallet:         w,
		LocalSigners:   []solana.PrivateKey{batchKey},
		ConfirmTimeout: s.config.ConfirmTimeout,
	})
	if err != nil {
		var subErr *blockchain.SubmissionError
		if errors.As(err, &subErr) {
			subErr.BatchAccount = batchAccount.String()
		}
		s.publishFailure(OpCreateBatch, batchID, batchAccount.String(), err)
		log.Error("CreateBatch failed", zap.String("kind", string(blockchain.KindOf(err))), zap.Error(err))
		return nil, err
	}

	out := &CreateBatchResult{
		Signature:    result.Signature.String(),
		BatchAccount: batchAccount.String(),
		BatchID:      batchID,
		Manufacturer: manufacturer,
		Owner:        authority.String(),
		Slot:         result.Slot,
		ExplorerURL:  s.ExplorerURL(result.Signature.String()),
	}
	log.Info("Batch created", zap.String("signature", out.Signature), zap.Uint64("slot", out.Slot))

	s.publish(&events.BatchCreatedEvent{
		BaseEvent:    events.NewBase(events.BatchCreated),
		BatchID:      batchID,
		BatchAccount: out.BatchAccount,
		Manufacturer: manufacturer,
		Owner:        out.Owner,
		Signature:    out.Signature,
		Slot:         out.Slot,
	})
	return out, nil
}

// TransferOwnership передает партию новому владельцу. Оба адреса проверяются до обращения к сети.
func (s *Service) TransferOwnership(ctx context.Context, w wallet.Wallet, batchAccount, batchID, newOwner string) (*TransferResult, error) {
	account, err := ParseAddress(batchAccount)
	if err != nil {
		return nil, fmt.Errorf("batch account: %w", err)
	}
	owner, err := ParseAddress(newOwner)
	if err != nil {
		return nil, fmt.Errorf("new owner: %w", err)
	}
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch_id is required", blockchain.ErrEncoding)
	}
	if w == nil || !w.Connected() {
		return nil, blockchain.ErrWalletNotConnected
	}
	authority := w.PublicKey()

	signature, err := s.attestor.Attest(batchID, account, owner)
	if err != nil {
		return nil, err
	}
	ix := TransferOwnership{BatchID: batchID, NewOwner: owner.String(), Signature: signature}

	inst, err := NewProgramInstruction(s.config.ProgramID, ix, Accounts{Authority: authority, BatchAccount: account})
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("batch_id", batchID),
		zap.String("batch_account", account.String()),
		zap.String("new_owner", owner.String()))

	result, err := s.pipeline.Submit(ctx, transaction.Request{
		Operation:      OpTransferOwnership,
		Instructions:   []solana.Instruction{inst},
		Wallet:         w,
		ConfirmTimeout: s.config.ConfirmTimeout,
	})
	if err != nil {
		var subErr *blockchain.SubmissionError
		if errors.As(err, &subErr) {
			subErr.BatchAccount = account.String()
		}
		s.publishFailure(OpTransferOwnership, batchID, account.String(), err)
		log.Error("TransferOwnership failed", zap.String("kind", string(blockchain.KindOf(err))), zap.Error(err))
		return nil, err
	}

	out := &TransferResult{
		Signature:     result.Signature.String(),
		BatchAccount:  account.String(),
		BatchID:       batchID,
		PreviousOwner: authority.String(),
		NewOwner:      owner.String(),
		Slot:          result.Slot,
		ExplorerURL:   s.ExplorerURL(result.Signature.String()),
	}
	log.Info("Ownership transferred", zap.String("signature", out.Signature))

	s.publish(&events.OwnershipTransferredEvent{
		BaseEvent:     events.NewBase(events.OwnershipTransferred),
		BatchID:       batchID,
		BatchAccount:  out.BatchAccount,
		PreviousOwner: out.PreviousOwner,
		NewOwner:      out.NewOwner,
		Signature:     out.Signature,
		Slot:          out.Slot,
	})
	return out, nil
}

// VerifyBatch проверяет партию по адресу аккаунта или по batch_id.
// Неизвестная партия - Verified=false без ошибки.
func (s *Service) VerifyBatch(ctx context.Context, ref string, opts VerifyOptions) (*VerifyResult, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: batch reference is required", blockchain.ErrEncoding)
	}
	out := &VerifyResult{Reference: ref}
	batchID := opts.BatchID

	if address, err := ParseAddress(ref); err == nil {
		info, err := s.reader.GetAccountInfo(ctx, address)
		if err != nil {
			return nil, err
		}
		if info != nil {
			out.BatchAccount = info.Address
			out.Owner = info.Owner
			out.OwnedByProgram = info.Owner == s.config.ProgramID.String()
			out.Verified = out.OwnedByProgram && info.State.Active()
			out.Batch = info.Batch
			if batchID == "" && info.Batch != nil {
				batchID = info.Batch.BatchID
			}
		}
	} else {
		if batchID == "" {
			batchID = ref
		}
		matches, err := s.reader.FindBatchAccounts(ctx, ref)
		if err != nil {
			return nil, err
		}
		out.Matches = len(matches)
		if len(matches) > 0 {
			out.Verified = true
			out.BatchAccount = matches[0].Address
			out.Owner = s.config.ProgramID.String()
			out.OwnedByProgram = true
			out.Batch = matches[0].Batch
		}
	}

	if opts.OnChain {
		w := opts.Wallet
		if w == nil || !w.Connected() {
			return nil, blockchain.ErrWalletNotConnected
		}
		inst, err := NewProgramInstruction(s.config.ProgramID, VerifyBatch{BatchID: batchID}, Accounts{Authority: w.PublicKey()})
		if err != nil {
			return nil, err
		}
		result, err := s.pipeline.Submit(ctx, transaction.Request{
			Operation:      OpVerifyBatch,
			Instructions:   []solana.Instruction{inst},
			Wallet:         w,
			ConfirmTimeout: s.config.ConfirmTimeout,
		})
		if err != nil {
			s.publishFailure(OpVerifyBatch, batchID, out.BatchAccount, err)
			return nil, err
		}
		out.Signature = result.Signature.String()
	}

	s.logger.Debug("Batch verified",
		zap.String("reference", ref),
		zap.Bool("verified", out.Verified),
		zap.String("batch_account", out.BatchAccount))

	s.publish(&events.BatchVerifiedEvent{
		BaseEvent: events.NewBase(events.BatchVerified),
		Reference: ref,
		Verified:  out.Verified,
		Signature: out.Signature,
	})
	return out, nil
}

// GetBatchInfo возвращает состояние аккаунта партии
func (s *Service) GetBatchInfo(ctx context.Context, batchAccount string) (*AccountInfo, error) {
	address, err := ParseAddress(batchAccount)
	if err != nil {
		return nil, err
	}
	info, err := s.reader.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchAccount)
	}
	return info, nil
}

// GetBatchHistory возвращает последние транзакции аккаунта партии
func (s *Service) GetBatchHistory(ctx context.Context, batchAccount string, limit int) ([]HistoryEntry, error) {
	address, err := ParseAddress(batchAccount)
	if err != nil {
		return nil, err
	}
	return s.reader.GetBatchHistory(ctx, address, limit)
}

// GetConnectionStatus сообщает состояние узла и кошелька. Недоступность сети отражается в полях, а не ошибкой.
func (s *Service) GetConnectionStatus(ctx context.Context, w wallet.Wallet) *ConnectionStatus {
	status := &ConnectionStatus{
		Endpoint:  s.client.Endpoint(),
		ProgramID: s.config.ProgramID.String(),
	}

	version, err := s.client.GetVersion(ctx)
	if err != nil {
		status.Error = err.Error()
		s.logger.Warn("RPC node unavailable", zap.String("endpoint", status.Endpoint), zap.Error(err))
		return status
	}
	status.Connected = true
	if version != nil {
		status.Version = version.SolanaCore
	}

	if w == nil {
		return status
	}
	status.Wallet = w.PublicKey().String()
	status.WalletConnected = w.Connected()

	balance, err := s.client.GetBalance(ctx, w.PublicKey(), "")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.BalanceLamports = balance
	status.BalanceSOL = LamportsToSOL(balance)
	return status
}

// ReconcileCreate проверяет исход CreateBatch после таймаута: партия создана, если аккаунт появился в сети
func (s *Service) ReconcileCreate(ctx context.Context, batchAccount string) (bool, error) {
	address, err := ParseAddress(batchAccount)
	if err != nil {
		return false, err
	}
	return s.reader.AccountExists(ctx, address)
}

// ReconcileSignature возвращает текущий статус ранее отправленной транзакции
func (s *Service) ReconcileSignature(ctx context.Context, signature string) (*transaction.Status, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	return s.pipeline.Monitor().GetTransactionStatus(ctx, sig)
}

// EnsureFunded запрашивает airdrop, если баланс кошелька ниже minLamports
func (s *Service) EnsureFunded(ctx context.Context, w wallet.Wallet, minLamports, airdropLamports uint64) (*FundResult, error) {
	if w == nil {
		return nil, blockchain.ErrWalletNotConnected
	}
	pubkey := w.PublicKey()
	out := &FundResult{Wallet: pubkey.String()}

	balance, err := s.client.GetBalance(ctx, pubkey, "")
	if err != nil {
		return nil, err
	}
	out.BalanceBefore = balance
	out.BalanceAfter = balance
	if balance >= minLamports {
		out.Skipped = true
		return out, nil
	}

	s.logger.Info("Requesting airdrop",
		zap.String("wallet", pubkey.String()),
		zap.Float64("balance_sol", LamportsToSOL(balance)),
		zap.Float64("airdrop_sol", LamportsToSOL(airdropLamports)))

	sig, err := s.client.RequestAirdrop(ctx, pubkey, airdropLamports)
	if err != nil {
		return nil, fmt.Errorf("airdrop failed: %w", err)
	}
	out.Signature = sig.String()

	status, err := s.pipeline.Monitor().AwaitConfirmation(ctx, sig, s.config.ConfirmTimeout)
	if err != nil {
		return out, blockchain.NewTimeout(sig.String(), err)
	}
	if status.Status == transaction.StatusFailed {
		return out, blockchain.NewRejected(status.Error, sig.String(), nil)
	}

	if after, err := s.client.GetBalance(ctx, pubkey, ""); err == nil {
		out.BalanceAfter = after
	}
	return out, nil
}

// LamportsToSOL переводит lamports в SOL
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}

func (s *Service) publish(event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("type", string(event.Type())), zap.Error(err))
	}
}

func (s *Service) publishFailure(op, batchID, batchAccount string, err error) {
	kind := blockchain.KindOf(err)
	if kind == blockchain.KindSubmissionTimeout {
		s.publish(&events.SubmissionTimedOutEvent{
			BaseEvent:    events.NewBase(events.SubmissionTimedOut),
			Operation:    op,
			BatchID:      batchID,
			BatchAccount: batchAccount,
			Signature:    blockchain.SignatureOf(err),
		})
		return
	}
	var reason string
	var subErr *blockchain.SubmissionError
	if errors.As(err, &subErr) {
		reason = subErr.Reason
	} else {
		reason = err.Error()
	}
	s.publish(&events.SubmissionFailedEvent{
		BaseEvent: events.NewBase(events.SubmissionFailed),
		Operation: op,
		BatchID:   batchID,
		Kind:      string(kind),
		Reason:    reason,
		Signature: blockchain.SignatureOf(err),
	})
}
