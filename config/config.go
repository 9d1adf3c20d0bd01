/*
Package config holds the configuration of the token demo: keys of the
participants, amounts of the scenario and the ledger storage.
*/
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/alphabill-token-auth/attest"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

type (
	Demo struct {
		Keys Keys `yaml:"keys"`

		FeePayerBalance uint64 `yaml:"fee_payer_balance"`
		Fee             uint64 `yaml:"fee"`
		TransferAmount  uint64 `yaml:"transfer_amount"`
		PaymentAmount   uint64 `yaml:"payment_amount"`
		NewState        uint64 `yaml:"new_state"`
		// send policy of the accounts deployed by the token contract, see types.AuthRequired
		ManagedSendPolicy string `yaml:"managed_send_policy"`

		DBPath       string `yaml:"db_path"` // empty for in-memory ledger
		LogLevel     string `yaml:"log_level"`
		ProveWorkers int    `yaml:"prove_workers"`
	}

	// Keys are base58 encoded secp256k1 private keys.
	Keys struct {
		FeePayer      string `yaml:"fee_payer"`
		TokenContract string `yaml:"token_contract"`
		Payer         string `yaml:"payer"`
		Consumer      string `yaml:"consumer"`
	}

	KeyPairs struct {
		FeePayer      *attest.KeyPair
		TokenContract *attest.KeyPair
		Payer         *attest.KeyPair
		Consumer      *attest.KeyPair
	}
)

func defaults() *Demo {
	return &Demo{
		FeePayerBalance:   1_000_000_000,
		TransferAmount:    100_000,
		PaymentAmount:     1,
		NewState:          2,
		ManagedSendPolicy: types.AuthEither.String(),
		LogLevel:          "info",
		ProveWorkers:      4,
	}
}

// Default returns the configuration of the payment scenario with freshly generated keys.
func Default() (*Demo, error) {
	cfg := defaults()
	for _, k := range []*string{&cfg.Keys.FeePayer, &cfg.Keys.TokenContract, &cfg.Keys.Payer, &cfg.Keys.Consumer} {
		key, err := attest.GenerateKey()
		if err != nil {
			return nil, err
		}
		*k = key.EncodeBase58()
	}
	return cfg, nil
}

// Load reads YAML config from path, fields missing from the file keep their default values.
func Load(path string) (*Demo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (cfg *Demo) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (cfg *Demo) Validate() error {
	var errs []error
	keys := map[string]string{
		"fee_payer":      cfg.Keys.FeePayer,
		"token_contract": cfg.Keys.TokenContract,
		"payer":          cfg.Keys.Payer,
		"consumer":       cfg.Keys.Consumer,
	}
	for _, name := range []string{"fee_payer", "token_contract", "payer", "consumer"} {
		if keys[name] == "" {
			errs = append(errs, fmt.Errorf("key %s is missing", name))
		} else if _, err := attest.KeyFromBase58(keys[name]); err != nil {
			errs = append(errs, fmt.Errorf("key %s: %w", name, err))
		}
	}
	if _, err := cfg.SendPolicy(); err != nil {
		errs = append(errs, err)
	}
	if cfg.TransferAmount < cfg.PaymentAmount {
		errs = append(errs, fmt.Errorf("payment amount %d exceeds transfer amount %d", cfg.PaymentAmount, cfg.TransferAmount))
	}
	return errors.Join(errs...)
}

func (cfg *Demo) KeyPairs() (*KeyPairs, error) {
	var kp KeyPairs
	for _, k := range []struct {
		dst **attest.KeyPair
		src string
	}{
		{&kp.FeePayer, cfg.Keys.FeePayer},
		{&kp.TokenContract, cfg.Keys.TokenContract},
		{&kp.Payer, cfg.Keys.Payer},
		{&kp.Consumer, cfg.Keys.Consumer},
	} {
		key, err := attest.KeyFromBase58(k.src)
		if err != nil {
			return nil, err
		}
		*k.dst = key
	}
	return &kp, nil
}

// SendPolicy parses ManagedSendPolicy.
func (cfg *Demo) SendPolicy() (types.AuthRequired, error) {
	for r := types.AuthNone; r <= types.AuthImpossible; r++ {
		if r.String() == cfg.ManagedSendPolicy {
			return r, nil
		}
	}
	return types.AuthImpossible, fmt.Errorf("unknown managed send policy %q", cfg.ManagedSendPolicy)
}
