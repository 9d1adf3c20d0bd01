package types

import (
	"fmt"

	"github.com/alphabill-org/alphabill-token-auth/util"
)

type Sign int8

const (
	SignDebit  Sign = -1
	SignCredit Sign = 1
)

func (s Sign) String() string {
	switch s {
	case SignCredit:
		return "credit"
	case SignDebit:
		return "debit"
	default:
		return fmt.Sprintf("Sign(%d)", int8(s))
	}
}

/*
BalanceChange is a signed change of an account balance stored as sign and
magnitude. Zero magnitude is always stored with SignCredit so that zero
changes compare equal regardless of how they were produced.
*/
type BalanceChange struct {
	_         struct{} `cbor:",toarray"`
	Magnitude uint64
	Sgn       Sign
}

func NewCredit(amount uint64) BalanceChange {
	return BalanceChange{Magnitude: amount, Sgn: SignCredit}
}

func NewDebit(amount uint64) BalanceChange {
	if amount == 0 {
		return BalanceChange{Sgn: SignCredit}
	}
	return BalanceChange{Magnitude: amount, Sgn: SignDebit}
}

// Sign returns the normalized sign, zero is a credit.
func (b BalanceChange) Sign() Sign {
	if b.Magnitude == 0 || b.Sgn != SignDebit {
		return SignCredit
	}
	return SignDebit
}

func (b BalanceChange) IsZero() bool {
	return b.Magnitude == 0
}

func (b BalanceChange) IsPositive() bool {
	return b.Magnitude > 0 && b.Sign() == SignCredit
}

func (b BalanceChange) IsNegative() bool {
	return b.Magnitude > 0 && b.Sign() == SignDebit
}

func (b BalanceChange) Neg() BalanceChange {
	if b.Sign() == SignCredit {
		return NewDebit(b.Magnitude)
	}
	return NewCredit(b.Magnitude)
}

func (b BalanceChange) Equal(o BalanceChange) bool {
	return b.Magnitude == o.Magnitude && b.Sign() == o.Sign()
}

// Add returns b+o, the magnitude of the result must fit into uint64.
func (b BalanceChange) Add(o BalanceChange) (BalanceChange, error) {
	if b.Sign() == o.Sign() {
		sum, ok := util.SafeAdd(b.Magnitude, o.Magnitude)
		if !ok {
			return BalanceChange{}, Violation(ErrInvariantViolation, "balance change overflow: %s + %s", b, o)
		}
		return BalanceChange{Magnitude: sum, Sgn: b.Sign()}, nil
	}
	diff, bLarger := util.AbsDiff(b.Magnitude, o.Magnitude)
	switch {
	case diff == 0:
		return NewCredit(0), nil
	case bLarger:
		return BalanceChange{Magnitude: diff, Sgn: b.Sign()}, nil
	default:
		return BalanceChange{Magnitude: diff, Sgn: o.Sign()}, nil
	}
}

// AssertNonzero returns InvariantViolation with msg when the magnitude is zero.
func (b BalanceChange) AssertNonzero(msg string) error {
	if b.IsZero() {
		return Violation(ErrInvariantViolation, "%s", msg)
	}
	return nil
}

// AssertSign returns InvariantViolation with msg unless the normalized sign is expected.
func (b BalanceChange) AssertSign(expected Sign, msg string) error {
	if b.Sign() != expected {
		return Violation(ErrInvariantViolation, "%s (got %s)", msg, b)
	}
	return nil
}

/*
Apply returns balance changed by b. Debiting more than balance and crediting
over the uint64 range are InvariantViolations.
*/
func (b BalanceChange) Apply(balance uint64) (uint64, error) {
	if b.Sign() == SignDebit {
		res, ok := util.SafeSub(balance, b.Magnitude)
		if !ok {
			return 0, Violation(ErrInvariantViolation, "insufficient balance: %d, debit %d", balance, b.Magnitude)
		}
		return res, nil
	}
	res, ok := util.SafeAdd(balance, b.Magnitude)
	if !ok {
		return 0, Violation(ErrInvariantViolation, "balance overflow: %d, credit %d", balance, b.Magnitude)
	}
	return res, nil
}

func (b BalanceChange) String() string {
	if b.Sign() == SignDebit {
		return fmt.Sprintf("-%d", b.Magnitude)
	}
	return fmt.Sprintf("+%d", b.Magnitude)
}
