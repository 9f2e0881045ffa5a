// cmd/medchain/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/config"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/events"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/badger"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/postgres"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/utils/logger"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

// App собирает зависимости одной команды CLI
type App struct {
	config   *config.Config
	log      *logger.Logger
	logger   *zap.Logger
	client   *solbc.Client
	pipeline *transaction.Pipeline
	service  *medweb3.Service
	bus      *events.Bus
	registry *prometheus.Registry

	store  storage.Storage
	wallet wallet.Wallet
}

// newApp читает конфиг и поднимает клиент сети и сервис. Хранилище и кошелек открываются по требованию.
func newApp(configPath string, debug bool, operation string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = debug || cfg.DebugLogging
	logCfg.Stderr = true
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	app := &App{
		config:   cfg,
		log:      log,
		logger:   log.WithOperation(operation),
		registry: prometheus.NewRegistry(),
	}

	commitment := rpc.CommitmentType(cfg.Commitment)
	client, err := solbc.NewClient(cfg.RPCList, solbc.Options{
		Commitment:     commitment,
		ReadRetries:    uint(cfg.ReadRetries),
		RequestTimeout: solbc.DefaultOptions().RequestTimeout,
		RetryInterval:  solbc.DefaultOptions().RetryInterval,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}
	app.client = client

	app.pipeline = transaction.NewPipeline(client, app.logger, transaction.Config{
		ConfirmTimeout: cfg.ConfirmTimeout(),
		PollInterval:   cfg.PollInterval(),
		Commitment:     commitment,
	}, transaction.NewMetrics(app.registry))

	attestor, err := newAttestor(cfg)
	if err != nil {
		return nil, err
	}

	app.bus = events.NewBus(app.logger, 256)

	app.service = medweb3.NewService(client, app.pipeline, medweb3.Config{
		ProgramID:            solana.MustPublicKeyFromBase58(cfg.ProgramID),
		RequireUniqueBatchID: cfg.RequireUniqueBatchID,
		ConfirmTimeout:       cfg.ConfirmTimeout(),
		Cluster:              cfg.ExplorerCluster,
	}, app.logger,
		medweb3.WithAttestor(attestor),
		medweb3.WithPublisher(app.bus))

	return app, nil
}

func newAttestor(cfg *config.Config) (medweb3.TransferAttestor, error) {
	if cfg.Attestation != config.AttestationKey {
		return medweb3.ZeroAttestor{}, nil
	}
	kp, err := wallet.LoadKeypairFile(cfg.AttestationKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load attestation key: %w", err)
	}
	return medweb3.NewKeyAttestor(kp.PrivateKey()), nil
}

// Storage открывает хранилище и подключает журнал транзакций к шине событий
func (a *App) Storage() (storage.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}

	var (
		store storage.Storage
		err   error
	)
	switch a.config.Storage.Driver {
	case config.StoragePostgres:
		store, err = postgres.NewStorage(a.config.Storage.PostgresURL, a.logger)
	default:
		store, err = badger.NewStorage(a.config.Storage.Path, a.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", a.config.Storage.Driver, err)
	}
	if err := store.RunMigrations(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	storage.NewRecorder(store, a.logger).Attach(a.bus)
	a.store = store
	return store, nil
}

// Wallet загружает кошелек: файл ключа solana-keygen или удаленный подписант
func (a *App) Wallet(ctx context.Context) (wallet.Wallet, error) {
	if a.wallet != nil {
		return a.wallet, nil
	}

	cfg := a.config
	switch {
	case cfg.RemoteSignerURL != "":
		pubkey, err := medweb3.ParseAddress(cfg.RemoteWalletPubkey)
		if err != nil {
			return nil, fmt.Errorf("remote_wallet_pubkey: %w", err)
		}
		remote := wallet.NewRemote(cfg.RemoteSignerURL, pubkey, 2*time.Minute, a.logger)
		if err := remote.Connect(ctx); err != nil {
			return nil, err
		}
		a.wallet = wallet.Serialize(remote)
	case cfg.KeypairPath != "":
		kp, err := wallet.LoadKeypairFile(cfg.KeypairPath)
		if err != nil {
			return nil, err
		}
		a.wallet = wallet.Serialize(kp)
	case cfg.WalletsFile != "":
		wallets, err := wallet.LoadWallets(cfg.WalletsFile)
		if err != nil {
			return nil, err
		}
		kp, ok := wallets[cfg.WalletName]
		if !ok {
			return nil, fmt.Errorf("wallet %q not found in %s", cfg.WalletName, cfg.WalletsFile)
		}
		a.wallet = wallet.Serialize(kp)
	default:
		return nil, errors.New("no wallet configured: set keypair_path, wallets_file or remote_signer_url")
	}

	a.log.WithWallet(a.wallet.PublicKey().String()).Info("Wallet loaded")
	return a.wallet, nil
}

// OptionalWallet возвращает кошелек, если он настроен, и nil без ошибки иначе
func (a *App) OptionalWallet(ctx context.Context) wallet.Wallet {
	if a.config.KeypairPath == "" && a.config.WalletsFile == "" && a.config.RemoteSignerURL == "" {
		return nil
	}
	w, err := a.Wallet(ctx)
	if err != nil {
		a.logger.Warn("Wallet unavailable", zap.Error(err))
		return nil
	}
	return w
}

// Close дожидается записи событий в журнал и закрывает хранилище
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.bus.Shutdown(ctx); err != nil {
		a.logger.Warn("Event bus shutdown", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
	if err := a.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}
