// Package sdk adapts the gagliardetto/solana-go RPC client to solana.LedgerClient.
package sdk

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/solana"
)

// Client implements solana.LedgerClient on top of solana-go.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

var _ solana.LedgerClient = (*Client)(nil)

// New creates a client for endpoint. An empty commitment means confirmed.
func New(endpoint string, commitment string) *Client {
	c := rpc.CommitmentType(commitment)
	if commitment == "" {
		c = rpc.CommitmentConfirmed
	}
	return &Client{rpc: rpc.New(endpoint), commitment: c}
}

func observe(method string, start time.Time) {
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
}

// GetTokenLargestAccounts returns the largest token accounts for a mint.
func (c *Client) GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	defer observe("getTokenLargestAccounts", time.Now())

	pk, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("parse mint %q: %w", mint, err)
	}

	out, err := c.rpc.GetTokenLargestAccounts(ctx, pk, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("getTokenLargestAccounts: %w", err)
	}
	if out == nil {
		return nil, nil
	}

	accounts := make([]solana.TokenAccountBalance, 0, len(out.Value))
	for _, v := range out.Value {
		if v == nil {
			continue
		}
		decimals := int(v.Decimals)
		accounts = append(accounts, solana.TokenAccountBalance{
			Address:  v.Address.String(),
			Amount:   v.Amount,
			Decimals: &decimals,
		})
	}
	return accounts, nil
}

// GetTokenSupply returns supply metadata for a mint, or nil when absent.
func (c *Client) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error) {
	defer observe("getTokenSupply", time.Now())

	pk, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("parse mint %q: %w", mint, err)
	}

	out, err := c.rpc.GetTokenSupply(ctx, pk, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("getTokenSupply: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}

	return &solana.TokenSupply{
		Amount:   out.Value.Amount,
		Decimals: int(out.Value.Decimals),
	}, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	defer observe("getAccountInfo", time.Now())

	pk, err := solanago.PublicKeyFromBase58(pubkey)
	if err != nil {
		return nil, fmt.Errorf("parse pubkey %q: %w", pubkey, err)
	}

	out, err := c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   solanago.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getAccountInfo: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}

	acc := out.Value
	info := &solana.AccountInfo{
		Lamports:   acc.Lamports,
		Owner:      acc.Owner.String(),
		Executable: acc.Executable,
	}
	if acc.RentEpoch != nil {
		info.RentEpoch = acc.RentEpoch.Uint64()
	}
	if acc.Data != nil {
		info.Data = base64.StdEncoding.EncodeToString(acc.Data.GetBinary())
	}
	return info, nil
}
