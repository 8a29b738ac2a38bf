package credits

import "time"

// TxType classifies a ledger entry.
type TxType string

const (
	TxDeduct TxType = "deduct"
	TxAdd    TxType = "add"
	TxGrant  TxType = "grant"
)

// MetadataVersion is written into every new transaction's metadata.
const MetadataVersion = 1

// Metadata is the structured context stored with a transaction.
type Metadata struct {
	Version    int               `json:"version"`
	Source     string            `json:"source,omitempty"`
	AnalysisID string            `json:"analysisId,omitempty"`
	ImageKey   string            `json:"imageKey,omitempty"`
	RefundOf   string            `json:"refundOf,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (m Metadata) withVersion() Metadata {
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return m
}

// Transaction is one append-only ledger entry.
type Transaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Type          TxType    `json:"type"`
	Amount        int       `json:"amount"`
	BalanceBefore int       `json:"balanceBefore"`
	BalanceAfter  int       `json:"balanceAfter"`
	Reason        string    `json:"reason"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Balance is a balance read. Degraded means storage failed and Credits is a zero default.
type Balance struct {
	Credits  int  `json:"credits"`
	Degraded bool `json:"degraded"`
}

// Result describes a committed balance mutation.
type Result struct {
	CreditsBefore int    `json:"creditsBefore"`
	CreditsAfter  int    `json:"creditsAfter"`
	TransactionID string `json:"transactionId"`
}

const (
	// AnalysisCost is the price of one image analysis.
	AnalysisCost = 1
	// AnalysisReason labels the deduction for an analysis.
	AnalysisReason = "Image analysis search"
	// RefundReason labels the refund after a failed analysis.
	RefundReason = "Analysis failed - credit refund"

	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 100
)
