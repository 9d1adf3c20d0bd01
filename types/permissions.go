package types

import "fmt"

// AuthKind is the kind of authorization attached to an account update.
type AuthKind uint8

const (
	AuthKindNone AuthKind = iota
	AuthKindSignature
	AuthKindProof
)

func (k AuthKind) String() string {
	switch k {
	case AuthKindNone:
		return "none"
	case AuthKindSignature:
		return "signature"
	case AuthKindProof:
		return "proof"
	default:
		return fmt.Sprintf("AuthKind(%d)", uint8(k))
	}
}

// AuthRequired is the minimal authorization an account demands for an action.
type AuthRequired uint8

const (
	AuthNone AuthRequired = iota
	AuthSignature
	AuthProof
	AuthEither
	AuthImpossible
)

func (r AuthRequired) Accepts(kind AuthKind) bool {
	switch r {
	case AuthNone:
		return true
	case AuthSignature:
		return kind == AuthKindSignature
	case AuthProof:
		return kind == AuthKindProof
	case AuthEither:
		return kind == AuthKindSignature || kind == AuthKindProof
	default:
		return false
	}
}

func (r AuthRequired) String() string {
	switch r {
	case AuthNone:
		return "none"
	case AuthSignature:
		return "signature"
	case AuthProof:
		return "proof"
	case AuthEither:
		return "proofOrSignature"
	case AuthImpossible:
		return "impossible"
	default:
		return fmt.Sprintf("AuthRequired(%d)", uint8(r))
	}
}

type Action uint8

const (
	ActionEditState Action = iota
	ActionSend
	ActionReceive
	ActionSetPermissions
	ActionSetVerificationKey
)

func (a Action) String() string {
	switch a {
	case ActionEditState:
		return "editState"
	case ActionSend:
		return "send"
	case ActionReceive:
		return "receive"
	case ActionSetPermissions:
		return "setPermissions"
	case ActionSetVerificationKey:
		return "setVerificationKey"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Permissions is the per-account policy: action -> required authorization.
type Permissions struct {
	_                  struct{} `cbor:",toarray"`
	EditState          AuthRequired
	Send               AuthRequired
	Receive            AuthRequired
	SetPermissions     AuthRequired
	SetVerificationKey AuthRequired
}

// DefaultPermissions is the policy of every account that hasn't set one.
func DefaultPermissions() Permissions {
	return Permissions{
		EditState:          AuthSignature,
		Send:               AuthSignature,
		Receive:            AuthNone,
		SetPermissions:     AuthSignature,
		SetVerificationKey: AuthSignature,
	}
}

func (p Permissions) Required(action Action) AuthRequired {
	switch action {
	case ActionEditState:
		return p.EditState
	case ActionSend:
		return p.Send
	case ActionReceive:
		return p.Receive
	case ActionSetPermissions:
		return p.SetPermissions
	case ActionSetVerificationKey:
		return p.SetVerificationKey
	default:
		return AuthImpossible
	}
}

// Check returns AuthorizationViolation when kind doesn't satisfy the policy of action.
func (p Permissions) Check(action Action, kind AuthKind) error {
	if req := p.Required(action); !req.Accepts(kind) {
		return Violation(ErrAuthorizationViolation, "%s requires %s authorization, got %s", action, req, kind)
	}
	return nil
}
