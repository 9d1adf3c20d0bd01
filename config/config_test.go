package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 100_000, cfg.TransferAmount)
	require.EqualValues(t, 1, cfg.PaymentAmount)
	require.EqualValues(t, 2, cfg.NewState)

	policy, err := cfg.SendPolicy()
	require.NoError(t, err)
	require.Equal(t, types.AuthEither, policy)

	keys, err := cfg.KeyPairs()
	require.NoError(t, err)
	require.NotEqual(t, keys.Payer.Address(), keys.Consumer.Address())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		cfg, err := Default()
		require.NoError(t, err)
		cfg.DBPath = "ledger.db"
		cfg.ManagedSendPolicy = "proof"
		path := filepath.Join(t.TempDir(), "demo.yaml")
		require.NoError(t, cfg.Save(path))

		loaded, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, cfg, loaded)
	})

	t.Run("defaults for missing fields", func(t *testing.T) {
		cfg, err := Default()
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "demo.yaml")
		data := "keys:\n" +
			"  fee_payer: " + cfg.Keys.FeePayer + "\n" +
			"  token_contract: " + cfg.Keys.TokenContract + "\n" +
			"  payer: " + cfg.Keys.Payer + "\n" +
			"  consumer: " + cfg.Keys.Consumer + "\n" +
			"payment_amount: 7\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0600))

		loaded, err := Load(path)
		require.NoError(t, err)
		require.EqualValues(t, 7, loaded.PaymentAmount)
		require.EqualValues(t, 100_000, loaded.TransferAmount)
		require.Equal(t, "info", loaded.LogLevel)
	})

	t.Run("missing keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "demo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fee: 1\n"), 0600))
		_, err := Load(path)
		require.ErrorContains(t, err, "key fee_payer is missing")
		require.ErrorContains(t, err, "key consumer is missing")
	})

	t.Run("no file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("not yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "demo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keys: [1, 2"), 0600))
		_, err := Load(path)
		require.ErrorContains(t, err, "decoding config")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg, err := Default()
	require.NoError(t, err)
	cfg.Keys.Payer = "not a key"
	cfg.ManagedSendPolicy = "anything"
	cfg.PaymentAmount = cfg.TransferAmount + 1

	err = cfg.Validate()
	require.ErrorContains(t, err, "key payer")
	require.ErrorContains(t, err, `unknown managed send policy "anything"`)
	require.ErrorContains(t, err, "exceeds transfer amount")
}
