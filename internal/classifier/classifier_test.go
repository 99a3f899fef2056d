package classifier

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"liquidity-watch/internal/domain"
)

const (
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	wsol = "So11111111111111111111111111111111111111112"
)

func newTestClassifier() *Classifier {
	return New(Config{USDCMint: usdc, WSOLMint: wsol})
}

func TestClassify_SkipsOtherTypes(t *testing.T) {
	c := newTestClassifier()

	for _, typ := range []string{"", "SWAP", "TRANSFER", "create_pool"} {
		n := domain.Notification{
			Type:           typ,
			TokenTransfers: []domain.TokenTransfer{{Mint: usdc, TokenAmount: 5000}},
		}
		if ev, ok := c.Classify(n); ok || ev != nil {
			t.Errorf("type %q: expected skip, got %+v", typ, ev)
		}
	}
}

func TestClassify_AggregatesDeposits(t *testing.T) {
	c := newTestClassifier()

	n := domain.Notification{
		Signature: "sig1",
		Slot:      250000000,
		Timestamp: 1700000000,
		Type:      domain.EventTypeCreatePool,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: usdc, TokenAmount: 1000, FromUserAccount: "user"},
			{Mint: usdc, TokenAmount: 500, FromUserAccount: "user"},
			{Mint: wsol, TokenAmount: 25, FromUserAccount: "user"},
			{Mint: "newToken", TokenAmount: 1e9, FromUserAccount: "user"},
			{Mint: "newToken", TokenAmount: 5, FromUserAccount: "user"},
			{Mint: "lpMint", TokenAmount: 100, FromUserAccount: "pool"},
			{Mint: "systemMint", TokenAmount: 100, FromUserAccount: ""},
		},
	}

	ev, ok := c.Classify(n)
	if !ok {
		t.Fatal("expected pool event")
	}

	want := &domain.PoolEvent{
		Signature:      "sig1",
		Slot:           250000000,
		Timestamp:      1700000000,
		USDCTotal:      1500,
		WSOLTotal:      25,
		CandidateMints: []string{"lpMint", "newToken"},
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("pool event mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_MissingFieldsDefault(t *testing.T) {
	c := newTestClassifier()

	ev, ok := c.Classify(domain.Notification{Type: domain.EventTypeCreatePool})
	if !ok {
		t.Fatal("expected pool event")
	}
	if ev.USDCTotal != 0 || ev.WSOLTotal != 0 {
		t.Errorf("expected zero totals, got usdc=%f wsol=%f", ev.USDCTotal, ev.WSOLTotal)
	}
	if len(ev.CandidateMints) != 0 {
		t.Errorf("expected no candidates, got %v", ev.CandidateMints)
	}
}

func TestClassify_IgnoresNegativeAndEmptyMint(t *testing.T) {
	c := newTestClassifier()

	n := domain.Notification{
		Type: domain.EventTypeCreatePool,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: usdc, TokenAmount: -50},
			{Mint: wsol, TokenAmount: 3},
			{Mint: "", TokenAmount: 10, FromUserAccount: "user"},
		},
	}

	ev, _ := c.Classify(n)
	if ev.USDCTotal != 0 {
		t.Errorf("negative amounts must not reduce totals, got %f", ev.USDCTotal)
	}
	if ev.WSOLTotal != 3 {
		t.Errorf("expected wsol 3, got %f", ev.WSOLTotal)
	}
	if len(ev.CandidateMints) != 0 {
		t.Errorf("empty mint must not be a candidate, got %v", ev.CandidateMints)
	}
}

func TestClassify_CustomEventType(t *testing.T) {
	c := New(Config{EventType: "INITIALIZE_POOL", USDCMint: usdc, WSOLMint: wsol})

	if _, ok := c.Classify(domain.Notification{Type: domain.EventTypeCreatePool}); ok {
		t.Error("CREATE_POOL must be skipped when a custom type is configured")
	}
	if _, ok := c.Classify(domain.Notification{Type: "INITIALIZE_POOL"}); !ok {
		t.Error("expected custom type to classify")
	}
}
