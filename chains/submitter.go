// Package chains provides blockchain interaction implementations
package chains

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/sljivkov/feedsync/domain"
	"github.com/sljivkov/feedsync/metrics"
)

// Backend is the RPC surface the submitter needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// SubmitterConfig holds signer and gas settings
type SubmitterConfig struct {
	PrivateKey  string
	GasLimit    uint64   // 0 estimates per transaction
	GasPrice    *big.Int // nil suggests per transaction
	CallTimeout time.Duration
	TxTimeout   time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// Submitter is the single signer of a run. Transactions are serialized, carry
// explicitly tracked nonces and are only reported once mined.
type Submitter struct {
	mu          sync.Mutex
	backend     Backend
	auth        *bind.TransactOpts
	nonce       *uint64
	callTimeout time.Duration
	txTimeout   time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

var _ domain.TransactionSubmitter = (*Submitter)(nil)

// NewSubmitter creates a submitter signing with the given hex private key
func NewSubmitter(ctx context.Context, backend Backend, cfg SubmitterConfig) (*Submitter, error) {
	ecdsaKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()

	chainID, err := backend.ChainID(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(ecdsaKey, chainID)
	if err != nil {
		return nil, err
	}

	auth.GasLimit = cfg.GasLimit
	auth.GasPrice = cfg.GasPrice

	return &Submitter{
		backend:     backend,
		auth:        auth,
		callTimeout: cfg.CallTimeout,
		txTimeout:   cfg.TxTimeout,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}, nil
}

// From returns the signing address
func (s *Submitter) From() common.Address {
	return s.auth.From
}

// Transact submits the transaction built by send and waits for a successful receipt
func (s *Submitter) Transact(ctx context.Context, label string, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.submit(ctx, label, send)
	s.metrics.ObserveTransaction(label, err)

	return receipt, err
}

// Deploy submits a contract creation and returns the address once mined
func (s *Submitter) Deploy(ctx context.Context, label string, deploy func(*bind.TransactOpts) (common.Address, *types.Transaction, error)) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var address common.Address

	receipt, err := s.submit(ctx, label, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		addr, tx, err := deploy(opts)
		address = addr

		return tx, err
	})
	s.metrics.ObserveTransaction(label, err)

	if err != nil {
		return common.Address{}, err
	}

	if receipt.ContractAddress != (common.Address{}) {
		address = receipt.ContractAddress
	}

	return address, nil
}

// submit must be called with s.mu held
func (s *Submitter) submit(ctx context.Context, label string, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	opts, err := s.opts(ctx)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	opts.Context = sendCtx
	tx, err := send(opts)
	cancel()

	if err != nil {
		// the node may or may not hold the transaction, re-read the nonce next time
		s.nonce = nil

		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTx, label, err)
	}

	*s.nonce++

	s.log.Info().
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Str("label", label).
		Msg("📨 transaction sent, waiting for inclusion")

	waitCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s not mined: %w", domain.ErrTx, label, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrTx, label, tx.Hash().Hex(), domain.ErrTxReverted)
	}

	s.log.Debug().
		Str("tx", tx.Hash().Hex()).
		Str("block", receipt.BlockNumber.String()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("transaction mined")

	return receipt, nil
}

// opts returns a copy of the signer options carrying the next nonce
func (s *Submitter) opts(ctx context.Context) (*bind.TransactOpts, error) {
	if s.nonce == nil {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		n, err := s.backend.PendingNonceAt(callCtx, s.auth.From)
		if err != nil {
			return nil, fmt.Errorf("%w: read nonce: %w", domain.ErrTx, err)
		}

		s.nonce = &n
	}

	opts := *s.auth
	opts.Nonce = new(big.Int).SetUint64(*s.nonce)

	return &opts, nil
}
