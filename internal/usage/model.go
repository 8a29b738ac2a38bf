package usage

import "time"

// Record holds one user's counters for one period.
type Record struct {
	UserID        string    `json:"userId"`
	Month         int       `json:"month"`
	Year          int       `json:"year"`
	SearchesCount int64     `json:"searchesCount"`
	APICallsCount int64     `json:"apiCallsCount"`
	StorageUsed   int64     `json:"storageUsed"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
	// Degraded is set when the counters could not be read and zeros were substituted.
	Degraded bool `json:"degraded"`
}

// Increment adds to the search and API call counters.
type Increment struct {
	UserID   string
	Searches int64
	APICalls int64
}

// StorageIncrement adds bytes to the storage counter.
type StorageIncrement struct {
	UserID string
	Bytes  int64
}

func emptyRecord(userID string, p Period) Record {
	return Record{UserID: userID, Month: p.Month, Year: p.Year}
}
