package domain

// PoolEvent is the classifier output for a pool-creation notification.
type PoolEvent struct {
	Signature      string
	Slot           uint64
	Timestamp      uint64
	USDCTotal      float64
	WSOLTotal      float64
	CandidateMints []string // sorted, unique
}
