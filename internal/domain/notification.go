package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Notification is one transaction event delivered by the webhook provider.
// Field names follow the Helius enhanced transaction payload.
type Notification struct {
	Signature      string          `json:"signature"`
	Slot           uint64          `json:"slot"`
	Timestamp      uint64          `json:"timestamp"` // unix seconds
	Type           string          `json:"type"`
	Source         string          `json:"source"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
	Instructions   []Instruction   `json:"instructions,omitempty"`
}

// Instruction is a top-level instruction of the notified transaction.
// Only the parsed instruction type is kept.
type Instruction struct {
	ProgramID  string `json:"programId"`
	ParsedType string `json:"parsedType,omitempty"` // parsed.type
}

// InstructionInitializePool is the parsed type of an AMM pool initialization.
const InstructionInitializePool = "initialize_pool"

// PoolInitializations returns the instructions that initialize a pool.
func (n Notification) PoolInitializations() []Instruction {
	var out []Instruction
	for _, ix := range n.Instructions {
		if ix.ParsedType == InstructionInitializePool {
			out = append(out, ix)
		}
	}
	return out
}

// TokenTransfer is one token movement inside a notification.
type TokenTransfer struct {
	Mint             string  `json:"mint"`
	TokenAmount      float64 `json:"tokenAmount"` // already human-scaled
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	FromTokenAccount string  `json:"fromTokenAccount"`
	ToTokenAccount   string  `json:"toTokenAccount"`
}

// EventTypeCreatePool is the notification type emitted for new AMM pools.
const EventTypeCreatePool = "CREATE_POOL"

// DecodeNotifications decodes a webhook payload. The provider posts a JSON
// array; a single object is accepted as a one-element batch.
func DecodeNotifications(data []byte) ([]Notification, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '{' {
		var n Notification
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		return []Notification{n}, nil
	}

	var batch []Notification
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	if batch == nil {
		batch = []Notification{}
	}
	return batch, nil
}

// UnmarshalJSON decodes field by field; a field with an unexpected type is
// left at its zero value instead of failing the whole notification.
func (n *Notification) UnmarshalJSON(data []byte) error {
	*n = Notification{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	lenient(raw["signature"], &n.Signature)
	lenient(raw["slot"], &n.Slot)
	lenient(raw["timestamp"], &n.Timestamp)
	lenient(raw["type"], &n.Type)
	lenient(raw["source"], &n.Source)

	var items []json.RawMessage
	lenient(raw["tokenTransfers"], &items)
	for _, item := range items {
		var t TokenTransfer
		_ = t.UnmarshalJSON(item)
		n.TokenTransfers = append(n.TokenTransfers, t)
	}

	items = nil
	lenient(raw["instructions"], &items)
	for _, item := range items {
		var ix Instruction
		_ = ix.UnmarshalJSON(item)
		n.Instructions = append(n.Instructions, ix)
	}
	return nil
}

// UnmarshalJSON reads programId and parsed.type. parsed may be absent or a
// plain string for instructions the provider could not decode.
func (ix *Instruction) UnmarshalJSON(data []byte) error {
	*ix = Instruction{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	lenient(raw["programId"], &ix.ProgramID)

	var parsed map[string]json.RawMessage
	lenient(raw["parsed"], &parsed)
	lenient(parsed["type"], &ix.ParsedType)
	if ix.ParsedType == "" {
		lenient(raw["parsedType"], &ix.ParsedType)
	}
	return nil
}

// UnmarshalJSON decodes field by field. tokenAmount may also arrive as a
// numeric string.
func (t *TokenTransfer) UnmarshalJSON(data []byte) error {
	*t = TokenTransfer{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	lenient(raw["mint"], &t.Mint)
	lenient(raw["fromUserAccount"], &t.FromUserAccount)
	lenient(raw["toUserAccount"], &t.ToUserAccount)
	lenient(raw["fromTokenAccount"], &t.FromTokenAccount)
	lenient(raw["toTokenAccount"], &t.ToTokenAccount)

	if amt, ok := raw["tokenAmount"]; ok {
		var num json.Number
		if err := json.Unmarshal(amt, &num); err == nil {
			if f, err := num.Float64(); err == nil {
				t.TokenAmount = f
			}
		}
	}
	return nil
}

func lenient(raw json.RawMessage, dst interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
