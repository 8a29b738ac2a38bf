package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type brokenLedger struct {
	*MemoryLedger
	balanceErr error
	addErr     error
}

func (b *brokenLedger) Balance(ctx context.Context, userID string) (int, error) {
	if b.balanceErr != nil {
		return 0, b.balanceErr
	}
	return b.MemoryLedger.Balance(ctx, userID)
}

func (b *brokenLedger) Add(ctx context.Context, userID string, amount int, txType TxType, reason string, md Metadata) (Result, error) {
	if b.addErr != nil {
		return Result{}, b.addErr
	}
	return b.MemoryLedger.Add(ctx, userID, amount, txType, reason, md)
}

func seededService(t *testing.T, userID string, credits int) (*Service, *MemoryLedger) {
	t.Helper()
	ledger := NewMemoryLedger()
	svc := NewService(ledger)
	if credits > 0 {
		if _, err := svc.GrantCredits(context.Background(), userID, credits, "Welcome bonus", Metadata{}); err != nil {
			t.Fatalf("GrantCredits: %v", err)
		}
	}
	return svc, ledger
}

func TestAnalysisChargeAndRefund(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "user_1", 10)

	res, err := svc.ProcessAnalysisCredits(ctx, "user_1", Metadata{AnalysisID: "a-1"})
	if err != nil {
		t.Fatalf("ProcessAnalysisCredits: %v", err)
	}
	if res.CreditsBefore != 10 || res.CreditsAfter != 9 || res.TransactionID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := svc.GetUserCredits(ctx, "user_1").Credits; got != 9 {
		t.Fatalf("expected 9 credits, got %d", got)
	}

	refund, err := svc.RefundAnalysisCredits(ctx, "user_1", "", Metadata{AnalysisID: "a-1", RefundOf: res.TransactionID})
	if err != nil {
		t.Fatalf("RefundAnalysisCredits: %v", err)
	}
	if refund.CreditsAfter != 10 {
		t.Fatalf("expected balance restored to 10, got %d", refund.CreditsAfter)
	}

	txs, err := svc.GetCreditTransactions(ctx, "user_1", 0, 0)
	if err != nil {
		t.Fatalf("GetCreditTransactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0].Type != TxAdd || txs[0].Reason != RefundReason || txs[0].Metadata.RefundOf != res.TransactionID {
		t.Fatalf("unexpected newest transaction %+v", txs[0])
	}
	if txs[1].Type != TxDeduct || txs[1].Reason != AnalysisReason || txs[1].BalanceAfter != 9 {
		t.Fatalf("unexpected deduct transaction %+v", txs[1])
	}
	if txs[1].Metadata.Version != MetadataVersion || txs[1].Metadata.Source != "analysis" {
		t.Fatalf("expected versioned analysis metadata, got %+v", txs[1].Metadata)
	}
	if txs[2].Type != TxGrant {
		t.Fatalf("expected oldest to be the grant, got %s", txs[2].Type)
	}
}

func TestAnalysisRejectedWithoutCredits(t *testing.T) {
	ctx := context.Background()
	svc, ledger := seededService(t, "user_1", 0)

	_, err := svc.ProcessAnalysisCredits(ctx, "user_1", Metadata{})
	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Current != 0 || insufficient.Required != 1 {
		t.Fatalf("unexpected error values %+v", insufficient)
	}
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected errors.Is to match ErrInsufficientCredits")
	}
	if err.Error() != "not enough credits, required 1, have 0" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if hist, _ := ledger.History(ctx, "user_1"); len(hist) != 0 {
		t.Fatalf("expected no transactions, got %d", len(hist))
	}
}

func TestDeductNeverClamps(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "user_1", 2)

	_, err := svc.DeductCredits(ctx, "user_1", 3, "bulk", Metadata{})
	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) || insufficient.Current != 2 || insufficient.Required != 3 {
		t.Fatalf("expected insufficient 2/3, got %v", err)
	}
	if got := svc.GetUserCredits(ctx, "user_1").Credits; got != 2 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
	if _, err := svc.DeductCredits(ctx, "user_1", 0, "noop", Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestConcurrentAnalysesOnLastCredit(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "user_1", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessAnalysisCredits(ctx, "user_1", Metadata{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientCredits):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != 1 {
		t.Fatalf("expected one winner and one rejection, got %d/%d", successes, rejected)
	}
	if got := svc.GetUserCredits(ctx, "user_1").Credits; got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
}

func TestConcurrentMixedOperationsKeepLedgerConsistent(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "user_1", 5)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				_, _ = svc.AddCredits(ctx, "user_1", 1, "top-up", Metadata{})
				return
			}
			_, _ = svc.ProcessAnalysisCredits(ctx, "user_1", Metadata{})
		}(i)
	}
	wg.Wait()

	v, err := svc.VerifyLedger(ctx, "user_1")
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if !v.Consistent || v.StoredBalance < 0 {
		t.Fatalf("expected consistent ledger, got %+v", v)
	}
}

func TestGetUserCreditsMissingAndDegraded(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryLedger())
	if b := svc.GetUserCredits(ctx, "nobody"); b.Credits != 0 || b.Degraded {
		t.Fatalf("expected plain zero for missing row, got %+v", b)
	}
	if svc.HasEnoughCredits(ctx, "nobody", 1) {
		t.Fatalf("expected no credits for missing row")
	}

	broken := &brokenLedger{MemoryLedger: NewMemoryLedger(), balanceErr: errors.New("connection reset")}
	svc = NewService(broken)
	if b := svc.GetUserCredits(ctx, "user_1"); b.Credits != 0 || !b.Degraded {
		t.Fatalf("expected degraded zero, got %+v", b)
	}
}

func TestDegradedReadLetsDeductDecide(t *testing.T) {
	ctx := context.Background()
	broken := &brokenLedger{MemoryLedger: NewMemoryLedger()}
	if _, err := broken.MemoryLedger.Add(ctx, "user_1", 3, TxGrant, "seed", Metadata{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	broken.balanceErr = errors.New("read replica down")
	svc := NewService(broken)

	res, err := svc.ProcessAnalysisCredits(ctx, "user_1", Metadata{})
	if err != nil {
		t.Fatalf("expected deduct to proceed, got %v", err)
	}
	if res.CreditsAfter != 2 {
		t.Fatalf("expected 2 credits after, got %d", res.CreditsAfter)
	}
}

func TestRefundFailureIsReported(t *testing.T) {
	ctx := context.Background()
	broken := &brokenLedger{MemoryLedger: NewMemoryLedger(), addErr: errors.New("disk full")}
	svc := NewService(broken)

	if _, err := svc.RefundAnalysisCredits(ctx, "user_1", "", Metadata{}); err == nil {
		t.Fatalf("expected refund error")
	}
}

func TestGetCreditTransactionsPaging(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "user_1", 0)
	for i := 0; i < 25; i++ {
		if _, err := svc.AddCredits(ctx, "user_1", 1, "top-up", Metadata{}); err != nil {
			t.Fatalf("AddCredits: %v", err)
		}
	}

	page, err := svc.GetCreditTransactions(ctx, "user_1", 0, -4)
	if err != nil {
		t.Fatalf("GetCreditTransactions: %v", err)
	}
	if len(page) != 20 {
		t.Fatalf("expected default limit 20, got %d", len(page))
	}
	if page[0].BalanceAfter != 25 {
		t.Fatalf("expected newest first, got balance_after %d", page[0].BalanceAfter)
	}

	page, err = svc.GetCreditTransactions(ctx, "user_1", 500, 20)
	if err != nil {
		t.Fatalf("GetCreditTransactions: %v", err)
	}
	if len(page) != 5 || page[4].BalanceAfter != 1 {
		t.Fatalf("unexpected tail page len=%d", len(page))
	}
}

func TestGrantRecordsGrantType(t *testing.T) {
	ctx := context.Background()
	svc, ledger := seededService(t, "user_1", 0)
	if _, err := svc.GrantCredits(ctx, "user_1", 5, "Welcome bonus", Metadata{Source: "signup"}); err != nil {
		t.Fatalf("GrantCredits: %v", err)
	}
	hist, _ := ledger.History(ctx, "user_1")
	if len(hist) != 1 || hist[0].Type != TxGrant || hist[0].Metadata.Source != "signup" {
		t.Fatalf("unexpected history %+v", hist)
	}
	if _, err := svc.GrantCredits(ctx, "", 5, "x", Metadata{}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}
