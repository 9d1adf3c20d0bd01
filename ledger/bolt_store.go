package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alphabill-org/alphabill-token-auth/cbor"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

var accountsBucket = []byte("accounts")

/*
BoltStore keeps the accounts in a bbolt database, CBOR encoded and keyed
by AccountID.Key. Views are bbolt read transactions and must be closed
before the same goroutine commits.
*/
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating accounts bucket: %w", err), db.Close())
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(ctx context.Context) (View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("starting read transaction: %w", err)
	}
	return &boltView{tx: tx}, nil
}

func (s *BoltStore) Commit(ctx context.Context, accounts []*types.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		for _, acc := range accounts {
			data, err := cbor.Marshal(acc)
			if err != nil {
				return fmt.Errorf("encoding account %s: %w", acc.ID, err)
			}
			if err := b.Put(acc.ID.Key(), data); err != nil {
				return fmt.Errorf("storing account %s: %w", acc.ID, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltView struct {
	tx *bbolt.Tx
}

func (v *boltView) Account(id types.AccountID) (*types.Account, error) {
	data := v.tx.Bucket(accountsBucket).Get(id.Key())
	if data == nil {
		return nil, nil
	}
	acc := &types.Account{}
	if err := cbor.Unmarshal(data, acc); err != nil {
		return nil, fmt.Errorf("decoding account %s: %w", id, err)
	}
	return acc, nil
}

func (v *boltView) Accounts(fn func(*types.Account) error) error {
	return v.tx.Bucket(accountsBucket).ForEach(func(k, data []byte) error {
		acc := &types.Account{}
		if err := cbor.Unmarshal(data, acc); err != nil {
			return fmt.Errorf("decoding account %x: %w", k, err)
		}
		return fn(acc)
	})
}

func (v *boltView) Close() error {
	return v.tx.Rollback()
}
