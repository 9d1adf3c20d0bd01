package attest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/alphabill-token-auth/transaction"
	"github.com/alphabill-org/alphabill-token-auth/types"
)

type (
	// Prover proves that the subtree with given commitment was produced by method of the contract with key vk.
	Prover interface {
		Prove(ctx context.Context, vk []byte, method string, commitment []byte) ([]byte, error)
	}

	Verifier interface {
		VerifySignature(msg, sig []byte, signer types.Address) error
		VerifyProof(vk []byte, method string, commitment, proof []byte) error
	}
)

/*
CommitmentProver binds the method and its output to the verification key:
the proof is Keccak256(vk || method || commitment). It is not zero knowledge
and not sound against anyone who knows vk; it stands in for a real proof
system behind the Prover and Verifier interfaces.
*/
type CommitmentProver struct{}

func (CommitmentProver) Prove(ctx context.Context, vk []byte, method string, commitment []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return commitmentProof(vk, method, commitment), nil
}

func commitmentProof(vk []byte, method string, commitment []byte) []byte {
	return crypto.Keccak256(vk, []byte(method), commitment)
}

// DefaultVerifier verifies secp256k1 signatures and CommitmentProver proofs.
type DefaultVerifier struct{}

func (DefaultVerifier) VerifySignature(msg, sig []byte, signer types.Address) error {
	if len(sig) != crypto.SignatureLength {
		return types.Violation(types.ErrAuthorizationViolation, "missing or malformed signature of %s", signer)
	}
	pub, err := crypto.SigToPub(msg, sig)
	if err != nil {
		return types.Violation(types.ErrAuthorizationViolation, "recovering signer: %v", err)
	}
	if addr := crypto.PubkeyToAddress(*pub); addr != signer {
		return types.Violation(types.ErrAuthorizationViolation, "signature by %s, expected %s", addr, signer)
	}
	return nil
}

func (DefaultVerifier) VerifyProof(vk []byte, method string, commitment, proof []byte) error {
	if !bytes.Equal(proof, commitmentProof(vk, method, commitment)) {
		return types.Violation(types.ErrAuthorizationViolation, "invalid proof of method %q", method)
	}
	return nil
}

type proofJob struct {
	node       transaction.NodeID
	vk         []byte
	method     string
	commitment []byte
	proof      []byte
}

/*
ProveTransaction fills the authorization data of every proof-authorized
update of tx. Verification keys are taken from the transaction itself when
an earlier update deploys one, otherwise from reader. Nodes are proved
concurrently.
*/
func ProveTransaction(ctx context.Context, tx *transaction.Transaction, reader transaction.AccountReader, prover Prover) error {
	jobs, err := proofJobs(ctx, tx, reader)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			proof, err := prover.Prove(ctx, job.vk, job.method, job.commitment)
			if err != nil {
				return fmt.Errorf("proving update %d (%s): %w", job.node, job.method, err)
			}
			job.proof = proof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, job := range jobs {
		tx.Update(job.node).Authorization.Data = job.proof
	}
	return nil
}

func proofJobs(ctx context.Context, tx *transaction.Transaction, reader transaction.AccountReader) ([]*proofJob, error) {
	pending := map[types.AccountID][]byte{}
	var jobs []*proofJob
	for _, id := range tx.Nodes() {
		u := tx.Update(id)
		if u.Authorization.Kind == types.AuthKindProof {
			vk, ok := pending[u.AccountID()]
			if !ok {
				acc, err := reader.FetchAccount(ctx, u.AccountID())
				if err != nil {
					return nil, fmt.Errorf("reading account %s: %w", u.AccountID(), err)
				}
				vk = acc.VerificationKey
			}
			if len(vk) == 0 {
				return nil, types.Violation(types.ErrDeployViolation, "account %s has no verification key to prove %q against", u.AccountID(), u.Authorization.Method)
			}
			commitment, err := tx.Commitment(id)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, &proofJob{node: id, vk: vk, method: u.Authorization.Method, commitment: commitment})
		}
		// the key deployed by the update applies to the updates after it
		if len(u.Body.VerificationKey) != 0 {
			pending[u.AccountID()] = u.Body.VerificationKey
		}
	}
	return jobs, nil
}

/*
ProveAll proves independent transactions in parallel, at most workers at
a time (unlimited when workers < 1).
*/
func ProveAll(ctx context.Context, txs []*transaction.Transaction, reader transaction.AccountReader, prover Prover, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			if err := ProveTransaction(ctx, tx, reader, prover); err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
