package oracle

import (
	"context"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"liquidity-watch/internal/domain"
)

// splTokenAccountMinLen covers mint(32) | owner(32).
const splTokenAccountMinLen = 64

// resolveOwners sets the wallet owner of each holder token account.
// Lookup failures leave the owner empty.
func (o *Oracle) resolveOwners(ctx context.Context, mint string, holders []domain.HolderRecord) {
	for i := range holders {
		callCtx, cancel := o.callContext(ctx)
		info, err := o.ledger.GetAccountInfo(callCtx, holders[i].Address)
		cancel()
		if err != nil {
			o.logger.Warn("getAccountInfo failed",
				zap.String("mint", mint),
				zap.String("account", holders[i].Address),
				zap.Error(err))
			continue
		}
		if info == nil || info.Data == "" {
			continue
		}

		owner, offCurve, err := parseTokenAccountOwner(info.Data)
		if err != nil {
			o.logger.Debug("unparseable token account",
				zap.String("account", holders[i].Address),
				zap.Error(err))
			continue
		}
		holders[i].Owner = owner
		holders[i].OwnerOffCurve = offCurve
	}
}

// parseTokenAccountOwner parses SPL token account data and returns the owner
// address and whether it is off the ed25519 curve (a program-derived address).
// Token account layout: mint(32) | owner(32) | amount(8) | ...
func parseTokenAccountOwner(data string) (string, bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", false, fmt.Errorf("decode token account data: %w", err)
	}
	if len(decoded) < splTokenAccountMinLen {
		return "", false, fmt.Errorf("token account data too short: %d", len(decoded))
	}
	owner := decoded[32:64]
	return base58.Encode(owner), !isOnCurve(owner), nil
}

func isOnCurve(key []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
