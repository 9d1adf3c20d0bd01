package transaction

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/alphabill-org/alphabill-token-auth/cbor"
	abhash "github.com/alphabill-org/alphabill-token-auth/hash"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

const TransactionTag cbor.Tag = 1100

var ErrTransactionIsNil = errors.New("transaction is nil")

/*
Transaction is a tree of account updates rooted at the fee payer update.
It is applied all-or-nothing.
*/
type Transaction struct {
	FeePayer types.Address
	Fee      uint64 // paid in the default token by the fee payer
	Nonce    uint64 // must equal the fee payer nonce at application time
	Memo     string

	tree *Tree
}

func newTransaction(feePayer types.Address, nonce uint64) *Transaction {
	root := types.NewAccountUpdate(types.NewAccountID(feePayer, types.DefaultTokenID))
	root.Sign()
	return &Transaction{FeePayer: feePayer, Nonce: nonce, tree: NewTree(root)}
}

func (tx *Transaction) Tree() *Tree {
	return tx.tree
}

func (tx *Transaction) Root() NodeID {
	return tx.tree.Root()
}

// Nodes returns the ids of all the nodes in pre-order.
func (tx *Transaction) Nodes() []NodeID {
	return tx.tree.Subtree(tx.tree.Root())
}

func (tx *Transaction) Update(id NodeID) *types.AccountUpdate {
	return tx.tree.Update(id)
}

/*
Commitment returns the commitment of the subtree at id: hash of the body
digest followed by the commitments of the children. Authorizations are
not part of it, so it is stable while proofs and signatures are added.
*/
func (tx *Transaction) Commitment(id NodeID) ([]byte, error) {
	u := tx.tree.Update(id)
	if u == nil {
		return nil, fmt.Errorf("unknown node %d", id)
	}
	digest, err := u.Body.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest of node %d: %w", id, err)
	}
	hashes := [][]byte{digest}
	for _, c := range tx.tree.Children(id) {
		h, err := tx.Commitment(c)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return abhash.SumHashes(crypto.SHA256, hashes...), nil
}

/*
Hash is the full commitment of the transaction, signatures are made over it:
the CBOR encoded header fields followed by the raw commitment of the tree.
*/
func (tx *Transaction) Hash() ([]byte, error) {
	if tx == nil {
		return nil, ErrTransactionIsNil
	}
	c, err := tx.Commitment(tx.Root())
	if err != nil {
		return nil, err
	}
	h := abhash.New(crypto.SHA256.New())
	h.Write(tx.FeePayer)
	h.Write(tx.Fee)
	h.Write(tx.Nonce)
	h.Write(tx.Memo)
	h.WriteRaw(c)
	return h.Sum()
}

/*
Validate checks the structural invariants: the root is the signed fee payer
update in the default token and every node of the arena is reachable from
the root.
*/
func (tx *Transaction) Validate() error {
	if tx == nil || tx.tree == nil {
		return ErrTransactionIsNil
	}
	root := tx.tree.Update(tx.Root())
	if !root.AccountID().Eq(types.NewAccountID(tx.FeePayer, types.DefaultTokenID)) {
		return types.Violation(types.ErrAuthorizationViolation, "root update %s is not the fee payer %s", root.AccountID(), tx.FeePayer)
	}
	if root.Authorization.Kind != types.AuthKindSignature {
		return types.Violation(types.ErrAuthorizationViolation, "fee payer update must be signed")
	}
	for id := 0; id < tx.tree.Len(); id++ {
		if !tx.tree.Attached(NodeID(id)) {
			return types.Violation(types.ErrLayoutViolation, "update %d of %s is not attached to the transaction", id, tx.tree.Update(NodeID(id)).AccountID())
		}
	}
	return nil
}

// wire format: nodes in pre-order, each with the index of its parent
type (
	encodedTransaction struct {
		_        struct{} `cbor:",toarray"`
		FeePayer types.Address
		Fee      uint64
		Nonce    uint64
		Memo     string
		Nodes    []encodedNode
	}

	encodedNode struct {
		_      struct{} `cbor:",toarray"`
		Parent int64
		Update *types.AccountUpdate
	}
)

func (tx *Transaction) MarshalCBOR() ([]byte, error) {
	enc := encodedTransaction{FeePayer: tx.FeePayer, Fee: tx.Fee, Nonce: tx.Nonce, Memo: tx.Memo}
	index := map[NodeID]int64{}
	for _, id := range tx.Nodes() {
		parent := int64(-1)
		if p := tx.tree.Parent(id); p != NoParent {
			parent = index[p]
		}
		index[id] = int64(len(enc.Nodes))
		enc.Nodes = append(enc.Nodes, encodedNode{Parent: parent, Update: tx.tree.Update(id)})
	}
	return cbor.MarshalTaggedValue(TransactionTag, enc)
}

func (tx *Transaction) UnmarshalCBOR(data []byte) error {
	var enc encodedTransaction
	if err := cbor.UnmarshalTaggedValue(TransactionTag, data, &enc); err != nil {
		return err
	}
	if len(enc.Nodes) == 0 || enc.Nodes[0].Parent != -1 {
		return errors.New("transaction must start with the root node")
	}
	tree := NewTree(enc.Nodes[0].Update)
	for i, n := range enc.Nodes[1:] {
		if n.Parent < 0 || n.Parent > int64(i) {
			return fmt.Errorf("node %d: invalid parent index %d", i+1, n.Parent)
		}
		if _, err := tree.Add(n.Update, NodeID(n.Parent)); err != nil {
			return fmt.Errorf("node %d: %w", i+1, err)
		}
	}
	*tx = Transaction{FeePayer: enc.FeePayer, Fee: enc.Fee, Nonce: enc.Nonce, Memo: enc.Memo, tree: tree}
	return nil
}
