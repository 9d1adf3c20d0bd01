package tokens

import (
	"bytes"

	"github.com/alphabill-org/alphabill-token-auth/contract"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

const (
	MethodApproveSend             = "approveSend"
	MethodUpdateStateIfUSDCIsSent = "updateStateIfUSDCIsSent"
)

var (
	_ contract.Contract = (*PayerContract)(nil)
	_ contract.Contract = (*StateContract)(nil)
)

// PayerContract is a managed account which pays out of its own balance on request.
type PayerContract struct {
	address         types.Address
	tokenID         types.TokenID
	verificationKey []byte
}

func NewPayerContract(address types.Address, tokenID types.TokenID, vk []byte) *PayerContract {
	return &PayerContract{address: address, tokenID: tokenID, verificationKey: bytes.Clone(vk)}
}

func (pc *PayerContract) Address() types.Address { return pc.address }

func (pc *PayerContract) TokenID() types.TokenID { return pc.tokenID }

func (pc *PayerContract) VerificationKey() []byte { return pc.verificationKey }

func (pc *PayerContract) Assemble(call *contract.Call, method string, args []any) (any, error) {
	switch method {
	case MethodApproveSend:
		amount, err := contract.Arg[uint64](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, call.Self().Debit(amount)
	default:
		return nil, contract.UnknownMethod(pc, method)
	}
}

/*
StateContract is a managed account whose state may only change together
with a token payment: updateStateIfUSDCIsSent moves amount tokens in the
configured direction and sets the new state. The token contract approving
the callback decides whether the payment is acceptable.
*/
type StateContract struct {
	address         types.Address
	tokenID         types.TokenID
	verificationKey []byte
	direction       types.Sign
}

type StateOption func(*StateContract)

/*
WithPaymentDirection sets the sign of the balance change the contract
produces and requires: SignCredit (default) when the contract is being
paid, SignDebit when it's the one paying.
*/
func WithPaymentDirection(sign types.Sign) StateOption {
	return func(sc *StateContract) { sc.direction = sign }
}

func NewStateContract(address types.Address, tokenID types.TokenID, vk []byte, opts ...StateOption) *StateContract {
	sc := &StateContract{address: address, tokenID: tokenID, verificationKey: bytes.Clone(vk), direction: types.SignCredit}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

func (sc *StateContract) Address() types.Address { return sc.address }

func (sc *StateContract) TokenID() types.TokenID { return sc.tokenID }

func (sc *StateContract) VerificationKey() []byte { return sc.verificationKey }

func (sc *StateContract) Assemble(call *contract.Call, method string, args []any) (any, error) {
	switch method {
	case MethodInit:
		call.Self().SetAppState(types.NewField(InitialState))
		return nil, nil
	case MethodUpdateStateIfUSDCIsSent:
		amount, err := contract.Arg[uint64](args, 0)
		if err != nil {
			return nil, err
		}
		newState, err := contract.Arg[*types.Field](args, 1)
		if err != nil {
			return nil, err
		}
		return nil, sc.updateStateIfPaid(call, amount, newState)
	default:
		return nil, contract.UnknownMethod(sc, method)
	}
}

func (sc *StateContract) updateStateIfPaid(call *contract.Call, amount uint64, newState *types.Field) error {
	self := call.Self()
	payment := types.NewCredit(amount)
	if sc.direction == types.SignDebit {
		payment = types.NewDebit(amount)
	}
	if err := self.AddBalance(payment); err != nil {
		return err
	}
	change := self.Body.BalanceChange
	if err := change.AssertSign(sc.direction, "payment has wrong direction"); err != nil {
		return err
	}
	if err := change.AssertNonzero("payment must be nonzero"); err != nil {
		return err
	}
	self.SetAppState(newState)
	return nil
}
