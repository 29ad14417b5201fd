package launch

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Ledger submits signed transactions and waits for them to land.
type Ledger interface {
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// RPCLedger implements Ledger against a JSON-RPC node.
type RPCLedger struct {
	client         *rpc.Client
	maxRetries     uint
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewRPCLedger creates a ledger bound to endpoint. maxRetries is passed to the
// node for submission only; confirmation is polled until confirmTimeout.
func NewRPCLedger(endpoint string, maxRetries uint, confirmTimeout time.Duration) *RPCLedger {
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	return &RPCLedger{
		client:         rpc.New(endpoint),
		maxRetries:     maxRetries,
		confirmTimeout: confirmTimeout,
		pollInterval:   time.Second,
	}
}

// Submit sends tx with preflight checks at confirmed commitment.
func (l *RPCLedger) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	retries := l.maxRetries
	sig, err := l.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &retries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// Confirm polls the signature status until it is confirmed or finalized.
func (l *RPCLedger) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		out, err := l.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("confirm %s: %w (last error: %v)", sig, ctx.Err(), err)
			}
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}
