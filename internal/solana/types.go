package solana

// TokenAccountBalance is one entry from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address  string
	Amount   string // raw integer units
	Decimals *int   // as reported by the node, may be absent
}

// TokenSupply from getTokenSupply.
type TokenSupply struct {
	Amount   string // raw integer units
	Decimals int
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
