package transaction

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

var (
	feePayer = common.HexToAddress("0xfee")
	owner    = common.HexToAddress("0x0c")
	alice    = common.HexToAddress("0x0a")
	bob      = common.HexToAddress("0x0b")
	token    = types.DeriveTokenID(owner, types.DefaultTokenID)
)

// accounts is in-memory AccountReader, missing accounts are new
type accounts map[types.AccountID]*types.Account

func (a accounts) FetchAccount(_ context.Context, id types.AccountID) (*types.Account, error) {
	if acc, ok := a[id]; ok {
		return acc.Copy(), nil
	}
	return types.NewAccount(id), nil
}

func (a accounts) add(id types.AccountID, balance uint64) {
	acc := types.NewAccount(id)
	acc.Balance = balance
	acc.IsNew = false
	a[id] = acc
}

func ownerID() types.AccountID { return types.NewAccountID(owner, types.DefaultTokenID) }

func tokenAccount(addr types.Address) types.AccountID {
	return types.NewAccountID(addr, token)
}
