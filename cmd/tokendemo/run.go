package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alphabill-org/alphabill-token-auth/attest"
	"github.com/alphabill-org/alphabill-token-auth/config"
	"github.com/alphabill-org/alphabill-token-auth/contract"
	"github.com/alphabill-org/alphabill-token-auth/ledger"
	"github.com/alphabill-org/alphabill-token-auth/tokens"
	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deploys the token contract and pays for a state change of another contract",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			_, err = runScenario(cmd.Context(), cfg, store, log)
			return err
		},
	}
}

func openStore(cfg *config.Demo) (ledger.Store, error) {
	if cfg.DBPath == "" {
		return ledger.NewMemoryStore(), nil
	}
	return ledger.NewBoltStore(cfg.DBPath)
}

type scenario struct {
	cfg    *config.Demo
	keys   *config.KeyPairs
	ledger *ledger.Ledger
	log    *zap.Logger

	token    *tokens.TokenContract
	payer    *tokens.PayerContract
	consumer *tokens.StateContract
}

// result of the scenario, balances are in the token of the token contract
type result struct {
	TokenContractBalance uint64
	PayerBalance         uint64
	ConsumerBalance      uint64
	ConsumerState        *types.Field
}

func newScenario(cfg *config.Demo, store ledger.Store, log *zap.Logger) (*scenario, error) {
	keys, err := cfg.KeyPairs()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.SendPolicy()
	if err != nil {
		return nil, err
	}
	token := tokens.NewTokenContract(keys.TokenContract.Address(), tokens.VerificationKey("TokenContract"), tokens.WithManagedSendPolicy(policy))
	return &scenario{
		cfg:      cfg,
		keys:     keys,
		ledger:   ledger.New(store, attest.DefaultVerifier{}, ledger.WithLogger(log)),
		log:      log,
		token:    token,
		payer:    tokens.NewPayerContract(keys.Payer.Address(), token.OwnedTokenID(), tokens.VerificationKey("PayerContract")),
		consumer: tokens.NewStateContract(keys.Consumer.Address(), token.OwnedTokenID(), tokens.VerificationKey("StateContract")),
	}, nil
}

func runScenario(ctx context.Context, cfg *config.Demo, store ledger.Store, log *zap.Logger) (*result, error) {
	s, err := newScenario(cfg, store, log)
	if err != nil {
		return nil, err
	}
	log.Debug("participants",
		zap.Stringer("fee_payer", s.keys.FeePayer),
		zap.Stringer("token_contract", s.keys.TokenContract),
		zap.Stringer("payer", s.keys.Payer),
		zap.Stringer("consumer", s.keys.Consumer),
		zap.String("token", s.token.OwnedTokenID().Hex()))

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"fund fee payer", s.fundFeePayer},
		{"deploy and initialize token contract", s.deployToken},
		{"deploy managed accounts", s.deployManagedAccounts},
		{"initialize consumer", s.initConsumer},
		{"send tokens to payer", s.fundPayer},
		{"pay for state change of consumer", s.payForStateChange},
	}
	for _, step := range steps {
		log.Info(step.name)
		if err := step.run(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
		if err := s.report(ctx); err != nil {
			return nil, err
		}
	}
	return s.result(ctx)
}

func (s *scenario) fundFeePayer(ctx context.Context) error {
	id := types.NewAccountID(s.keys.FeePayer.Address(), types.DefaultTokenID)
	acc, err := s.ledger.FetchAccount(ctx, id)
	if err != nil {
		return err
	}
	if !acc.IsNew {
		return nil
	}
	acc.Balance = s.cfg.FeePayerBalance
	return s.ledger.Genesis(ctx, acc)
}

func (s *scenario) assemble(ctx context.Context, fn func(*transaction.Builder) error) (*transaction.Transaction, error) {
	return s.ledger.Transaction(ctx, s.keys.FeePayer.Address(), fn, transaction.WithFee(s.cfg.Fee))
}

// submit proves, signs and submits the transactions in order
func (s *scenario) submit(ctx context.Context, txs ...*transaction.Transaction) error {
	if err := attest.ProveAll(ctx, txs, s.ledger, attest.CommitmentProver{}, s.cfg.ProveWorkers); err != nil {
		return err
	}
	for _, tx := range txs {
		if _, err := attest.Sign(tx, s.keys.FeePayer, s.keys.TokenContract, s.keys.Payer, s.keys.Consumer); err != nil {
			return err
		}
		if _, err := s.ledger.Submit(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenario) deployToken(ctx context.Context) error {
	tx, err := s.assemble(ctx, func(b *transaction.Builder) error {
		if err := s.token.Deploy(b); err != nil {
			return err
		}
		return s.token.Init(b)
	})
	if err != nil {
		return err
	}
	return s.submit(ctx, tx)
}

// deployManagedAccounts deploys the payer and the consumer in two independent transactions
func (s *scenario) deployManagedAccounts(ctx context.Context) error {
	var txs []*transaction.Transaction
	for _, c := range []interface {
		contract.Contract
		VerificationKey() []byte
	}{s.payer, s.consumer} {
		tx, err := s.assemble(ctx, func(b *transaction.Builder) error {
			return s.token.DeployManagedAccount(b, c.Address(), c.VerificationKey())
		})
		if err != nil {
			return err
		}
		tx.Nonce += uint64(len(txs))
		txs = append(txs, tx)
	}
	return s.submit(ctx, txs...)
}

func (s *scenario) initConsumer(ctx context.Context) error {
	tx, err := s.assemble(ctx, func(b *transaction.Builder) error {
		return s.token.ApproveStateCallback(b, contract.NewCallback(s.consumer, tokens.MethodInit))
	})
	if err != nil {
		return err
	}
	return s.submit(ctx, tx)
}

func (s *scenario) fundPayer(ctx context.Context) error {
	tx, err := s.assemble(ctx, func(b *transaction.Builder) error {
		return s.token.Transfer(b, s.token.Address(), s.payer.Address(), s.cfg.TransferAmount)
	})
	if err != nil {
		return err
	}
	return s.submit(ctx, tx)
}

func (s *scenario) payForStateChange(ctx context.Context) error {
	amount := s.cfg.PaymentAmount
	tx, err := s.assemble(ctx, func(b *transaction.Builder) error {
		cb := contract.NewCallback(s.consumer, tokens.MethodUpdateStateIfUSDCIsSent, amount, types.NewField(s.cfg.NewState))
		return s.token.ApproveCallback(b, cb, amount, s.payer.Address())
	})
	if err != nil {
		return err
	}
	return s.submit(ctx, tx)
}

func (s *scenario) result(ctx context.Context) (*result, error) {
	tokenID := s.token.OwnedTokenID()
	var res result
	for _, v := range []struct {
		addr types.Address
		dst  *uint64
	}{
		{s.token.Address(), &res.TokenContractBalance},
		{s.payer.Address(), &res.PayerBalance},
		{s.consumer.Address(), &res.ConsumerBalance},
	} {
		acc, err := s.ledger.FetchAccount(ctx, types.NewAccountID(v.addr, tokenID))
		if err != nil {
			return nil, err
		}
		*v.dst = acc.Balance
		if v.addr == s.consumer.Address() {
			res.ConsumerState = acc.AppState
		}
	}
	return &res, nil
}

func (s *scenario) report(ctx context.Context) error {
	res, err := s.result(ctx)
	if err != nil {
		return err
	}
	s.log.Info("token balances",
		zap.Uint64("token_contract", res.TokenContractBalance),
		zap.Uint64("payer", res.PayerBalance),
		zap.Uint64("consumer", res.ConsumerBalance),
		zap.Stringer("consumer_state", res.ConsumerState))
	return nil
}
