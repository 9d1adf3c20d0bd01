package tokens

import (
	"bytes"
	"fmt"
	"math"

	"github.com/alphabill-org/alphabill-token-auth/contract"
	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

const (
	MethodDeploy                   = "deploy"
	MethodInit                     = "init"
	MethodDeployManagedAccount     = "deployManagedAccount"
	MethodTransfer                 = "transfer"
	MethodUpdateStateIfPositive    = "updateStateIfBalanceChangeIsPositive"
	MethodUpdateStateIfNegative    = "updateStateIfBalanceChangeIsNegative"
	MethodUpdateStateIfTokenIsSent = "updateStateIfTokenIsSent"
	MethodApproveCallback          = "approveCallback"
	MethodApproveStateCallback     = "approveStateCallback"
	MethodGetBalance               = "getBalance"
)

// InitialState is the state init sets.
const InitialState uint64 = 1

var _ contract.Contract = (*TokenContract)(nil)

/*
TokenContract owns the token derived from its address and approves every
update of accounts holding the token. State of the contract may only be
changed together with a verified, nonzero token payment.
*/
type TokenContract struct {
	address         types.Address
	verificationKey []byte
	managedSend     types.AuthRequired
}

type Option func(*TokenContract)

/*
WithManagedSendPolicy sets the send policy installed on accounts deployed
with deployManagedAccount. The default (proof) forbids the owner of the
key to move the tokens without the contract.
*/
func WithManagedSendPolicy(req types.AuthRequired) Option {
	return func(tc *TokenContract) { tc.managedSend = req }
}

func NewTokenContract(address types.Address, verificationKey []byte, opts ...Option) *TokenContract {
	tc := &TokenContract{address: address, verificationKey: bytes.Clone(verificationKey), managedSend: types.AuthProof}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

func (tc *TokenContract) Address() types.Address { return tc.address }

// TokenID of the account of the contract itself (not the token it owns).
func (tc *TokenContract) TokenID() types.TokenID { return types.DefaultTokenID }

// OwnedTokenID is the id of the token managed by the contract.
func (tc *TokenContract) OwnedTokenID() types.TokenID {
	return types.DeriveTokenID(tc.address, tc.TokenID())
}

func (tc *TokenContract) VerificationKey() []byte { return tc.verificationKey }

func (tc *TokenContract) tokenAccount(addr types.Address) types.AccountID {
	return types.NewAccountID(addr, tc.OwnedTokenID())
}

// Permissions installed on the contract account by deploy.
func (tc *TokenContract) Permissions() types.Permissions {
	p := types.DefaultPermissions()
	p.EditState = types.AuthEither
	p.Send = types.AuthEither
	p.Receive = types.AuthEither
	return p
}

/*
ManagedPermissions are installed on accounts deployed with
deployManagedAccount: state is edited by the account's own contract methods
and tokens leave the account according to the managed send policy.
*/
func (tc *TokenContract) ManagedPermissions() types.Permissions {
	p := types.DefaultPermissions()
	p.EditState = types.AuthProof
	p.Send = tc.managedSend
	return p
}

func (tc *TokenContract) Assemble(call *contract.Call, method string, args []any) (any, error) {
	switch method {
	case MethodDeploy:
		return nil, tc.deploy(call)
	case MethodInit:
		return nil, tc.init(call)
	case MethodDeployManagedAccount:
		addr, err := contract.Arg[types.Address](args, 0)
		if err != nil {
			return nil, err
		}
		vk, err := contract.Arg[[]byte](args, 1)
		if err != nil {
			return nil, err
		}
		return nil, tc.deployManagedAccount(call, addr, vk)
	case MethodTransfer:
		from, err := contract.Arg[types.Address](args, 0)
		if err != nil {
			return nil, err
		}
		to, err := contract.Arg[types.Address](args, 1)
		if err != nil {
			return nil, err
		}
		amount, err := contract.Arg[uint64](args, 2)
		if err != nil {
			return nil, err
		}
		return nil, tc.transfer(call, from, to, amount)
	case MethodUpdateStateIfPositive, MethodUpdateStateIfNegative, MethodUpdateStateIfTokenIsSent:
		cb, err := contract.Arg[*contract.Callback](args, 0)
		if err != nil {
			return nil, err
		}
		newState, err := contract.Arg[*types.Field](args, 1)
		if err != nil {
			return nil, err
		}
		sign := types.SignDebit
		if method == MethodUpdateStateIfPositive {
			sign = types.SignCredit
		}
		return nil, tc.updateStateIfBalanceChange(call, cb, newState, sign)
	case MethodApproveCallback:
		cb, err := contract.Arg[*contract.Callback](args, 0)
		if err != nil {
			return nil, err
		}
		amount, err := contract.Arg[uint64](args, 1)
		if err != nil {
			return nil, err
		}
		payer, err := contract.Arg[types.Address](args, 2)
		if err != nil {
			return nil, err
		}
		return nil, tc.approveCallback(call, cb, amount, payer)
	case MethodApproveStateCallback:
		cb, err := contract.Arg[*contract.Callback](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, tc.approveStateCallback(call, cb)
	case MethodGetBalance:
		addr, err := contract.Arg[types.Address](args, 0)
		if err != nil {
			return nil, err
		}
		return tc.getBalance(call, addr)
	default:
		return nil, contract.UnknownMethod(tc, method)
	}
}

func (tc *TokenContract) deploy(call *contract.Call) error {
	acc, err := call.Account()
	if err != nil {
		return err
	}
	if acc.IsContract() {
		return types.Violation(types.ErrDeployViolation, "contract %s is already deployed", acc.ID)
	}
	self := call.Self()
	self.Sign()
	self.SetVerificationKey(tc.verificationKey)
	self.SetPermissions(tc.Permissions())
	return nil
}

func (tc *TokenContract) init(call *contract.Call) error {
	acc, err := call.Account()
	if err != nil {
		return err
	}
	if PhaseOf(acc) == PhaseUninitialized {
		return types.Violation(types.ErrDeployViolation, "contract %s must be deployed before init", acc.ID)
	}

	// an initialized contract fails here as its token account exists
	target := tc.tokenAccount(tc.address)
	receiver, err := call.Builder().EffectiveAccount(target)
	if err != nil {
		return err
	}
	if !receiver.IsNew {
		return types.Violation(types.ErrMintViolation, "mint target %s already exists", target)
	}
	_, mint, err := call.RequestUpdate(target)
	if err != nil {
		return err
	}
	if err := mint.Credit(math.MaxUint64); err != nil {
		return err
	}
	mint.Body.Mint = true
	mint.RequireNew(true)

	call.Self().SetAppState(types.NewField(InitialState))
	return nil
}

func (tc *TokenContract) deployManagedAccount(call *contract.Call, addr types.Address, vk []byte) error {
	own, err := call.Builder().EffectiveAccount(tc.tokenAccount(tc.address))
	if err != nil {
		return err
	}
	if own.IsNew {
		return types.Violation(types.ErrDeployViolation, "token %s must be minted before deploying managed accounts", tc.OwnedTokenID().TerminalString())
	}
	id := tc.tokenAccount(addr)
	acc, err := call.Builder().EffectiveAccount(id)
	if err != nil {
		return err
	}
	if acc.IsContract() {
		return types.Violation(types.ErrDeployViolation, "contract %s is already deployed", id)
	}
	_, u, err := call.RequestUpdate(id)
	if err != nil {
		return err
	}
	u.SetPermissions(tc.ManagedPermissions())
	u.SetVerificationKey(vk)
	u.Sign()
	return nil
}

func (tc *TokenContract) transfer(call *contract.Call, from, to types.Address, amount uint64) error {
	_, debit, err := call.RequestUpdate(tc.tokenAccount(from))
	if err != nil {
		return err
	}
	if err := debit.Debit(amount); err != nil {
		return err
	}
	debit.Sign()

	_, credit, err := call.RequestUpdate(tc.tokenAccount(to))
	if err != nil {
		return err
	}
	return credit.Credit(amount)
}

// authorizeTokenCallback authorizes cb as a single update of an account holding the token.
func (tc *TokenContract) authorizeTokenCallback(call *contract.Call, cb *contract.Callback) (*types.AccountUpdate, error) {
	u, err := call.Authorize(cb, transaction.NoChildren)
	if err != nil {
		return nil, err
	}
	if u.AccountID().TokenID != tc.OwnedTokenID() {
		return nil, call.Fail(types.Violation(types.ErrAuthorizationViolation, "callback %s updates %s which doesn't hold token %s", cb, u.AccountID(), tc.OwnedTokenID().TerminalString()))
	}
	return u, nil
}

/*
updateStateIfBalanceChange sets the state of the contract when the update
produced by cb changes its balance with the required sign and nonzero
magnitude.
*/
func (tc *TokenContract) updateStateIfBalanceChange(call *contract.Call, cb *contract.Callback, newState *types.Field, sign types.Sign) error {
	u, err := tc.authorizeTokenCallback(call, cb)
	if err != nil {
		return err
	}
	msg := "balance change must be positive"
	if sign == types.SignDebit {
		msg = "balance change must be negative"
	}
	change := u.Body.BalanceChange
	if err := change.AssertSign(sign, msg); err != nil {
		return call.Fail(err)
	}
	if err := change.AssertNonzero("balance change must be nonzero"); err != nil {
		return call.Fail(err)
	}
	call.Self().SetAppState(newState)
	return nil
}

/*
approveCallback accepts the update of cb crediting exactly amount tokens to
the callee and debits the payer with the same amount.
*/
func (tc *TokenContract) approveCallback(call *contract.Call, cb *contract.Callback, amount uint64, payer types.Address) error {
	u, err := tc.authorizeTokenCallback(call, cb)
	if err != nil {
		return err
	}
	change := u.Body.BalanceChange
	if err := change.AssertSign(types.SignCredit, "balance change must be positive"); err != nil {
		return call.Fail(err)
	}
	if err := change.AssertNonzero("balance change must be nonzero"); err != nil {
		return call.Fail(err)
	}
	if change.Magnitude != amount {
		return call.Fail(types.Violation(types.ErrInvariantViolation, "balance change %s doesn't match the approved amount %d", change, amount))
	}

	_, debit, err := call.RequestUpdate(tc.tokenAccount(payer))
	if err != nil {
		return err
	}
	if err := debit.Debit(amount); err != nil {
		return err
	}
	debit.Sign()
	return nil
}

// approveStateCallback accepts the update of cb if it doesn't move any tokens.
func (tc *TokenContract) approveStateCallback(call *contract.Call, cb *contract.Callback) error {
	u, err := tc.authorizeTokenCallback(call, cb)
	if err != nil {
		return err
	}
	if !u.Body.BalanceChange.IsZero() {
		return call.Fail(types.Violation(types.ErrInvariantViolation, "state callback %s must not change the balance, got %s", cb, u.Body.BalanceChange))
	}
	return nil
}

// getBalance returns the snapshot balance of addr and pins it as precondition of the transaction.
func (tc *TokenContract) getBalance(call *contract.Call, addr types.Address) (uint64, error) {
	id := tc.tokenAccount(addr)
	acc, err := call.Builder().Account(id)
	if err != nil {
		return 0, fmt.Errorf("reading account %s: %w", id, err)
	}
	_, u, err := call.RequestUpdate(id)
	if err != nil {
		return 0, err
	}
	u.RequireBalance(acc.Balance)
	return acc.Balance, nil
}

// Deploy installs the verification key and permissions of the contract.
func (tc *TokenContract) Deploy(b *transaction.Builder) error {
	_, err := contract.Invoke(b, tc, MethodDeploy)
	return err
}

// Init mints the whole supply of the token to the contract and sets the initial state.
func (tc *TokenContract) Init(b *transaction.Builder) error {
	_, err := contract.Invoke(b, tc, MethodInit)
	return err
}

func (tc *TokenContract) DeployManagedAccount(b *transaction.Builder, addr types.Address, vk []byte) error {
	_, err := contract.Invoke(b, tc, MethodDeployManagedAccount, addr, vk)
	return err
}

func (tc *TokenContract) Transfer(b *transaction.Builder, from, to types.Address, amount uint64) error {
	_, err := contract.Invoke(b, tc, MethodTransfer, from, to, amount)
	return err
}

func (tc *TokenContract) UpdateStateIfBalanceChangeIsPositive(b *transaction.Builder, cb *contract.Callback, newState *types.Field) error {
	_, err := contract.Invoke(b, tc, MethodUpdateStateIfPositive, cb, newState)
	return err
}

func (tc *TokenContract) UpdateStateIfBalanceChangeIsNegative(b *transaction.Builder, cb *contract.Callback, newState *types.Field) error {
	_, err := contract.Invoke(b, tc, MethodUpdateStateIfNegative, cb, newState)
	return err
}

func (tc *TokenContract) UpdateStateIfTokenIsSent(b *transaction.Builder, cb *contract.Callback, newState *types.Field) error {
	_, err := contract.Invoke(b, tc, MethodUpdateStateIfTokenIsSent, cb, newState)
	return err
}

func (tc *TokenContract) ApproveCallback(b *transaction.Builder, cb *contract.Callback, amount uint64, payer types.Address) error {
	_, err := contract.Invoke(b, tc, MethodApproveCallback, cb, amount, payer)
	return err
}

func (tc *TokenContract) ApproveStateCallback(b *transaction.Builder, cb *contract.Callback) error {
	_, err := contract.Invoke(b, tc, MethodApproveStateCallback, cb)
	return err
}

func (tc *TokenContract) GetBalance(b *transaction.Builder, addr types.Address) (uint64, error) {
	res, err := contract.Invoke(b, tc, MethodGetBalance, addr)
	if err != nil {
		return 0, err
	}
	return res.Value.(uint64), nil
}
