package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"green-hydrogen/credit-platform/credit-platform-backend/pkg/workflows"
)

// ClaimStatus is the tagged lifecycle state of a production claim. The
// transition table below is the only way a claim moves between states, so an
// inconsistent combination (consumed but never approved) is unreachable.
type ClaimStatus string

const (
	StatusSubmitted ClaimStatus = "submitted"
	StatusApproved  ClaimStatus = "approved"
	StatusRejected  ClaimStatus = "rejected"
	StatusConsumed  ClaimStatus = "consumed"
)

// Lifecycle holds the allowed claim transitions:
// submitted -> approved | rejected, approved -> consumed.
var Lifecycle = workflows.NewStateMachine(map[string][]string{
	string(StatusSubmitted): {string(StatusApproved), string(StatusRejected)},
	string(StatusApproved):  {string(StatusConsumed)},
	string(StatusRejected):  {},
	string(StatusConsumed):  {},
})

// Claim records a producer's assertion of hydrogen production awaiting
// verification and one-time consumption by the credit ledger.
type Claim struct {
	ClaimID         string      `json:"claim_id" db:"claim_id"`
	ProducerAddress string      `json:"producer_address" db:"producer_address"`
	PlantID         string      `json:"plant_id" db:"plant_id"`
	Amount          int64       `json:"amount" db:"amount"`
	ProductionTime  time.Time   `json:"production_time" db:"production_time"`
	EvidenceRef     string      `json:"evidence_ref" db:"evidence_ref"`
	Status          ClaimStatus `json:"status" db:"status"`
	FeePaid         int64       `json:"fee_paid" db:"fee_paid"`
	Nonce           int64       `json:"nonce" db:"nonce"`
	SubmittedAt     time.Time   `json:"submitted_at" db:"submitted_at"`
	DecidedBy       *string     `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt       *time.Time  `json:"decided_at,omitempty" db:"decided_at"`
	ConsumedAt      *time.Time  `json:"consumed_at,omitempty" db:"consumed_at"`
}

// Consumable reports whether the claim can fund a mint: approved and not yet
// consumed.
func (c *Claim) Consumable() bool {
	return c.Status == StatusApproved
}

// Verifier is an allowlisted party empowered to decide claims.
type Verifier struct {
	Address string    `json:"address" db:"address"`
	Name    string    `json:"name" db:"name"`
	Active  bool      `json:"active" db:"active"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// ComputeClaimID derives the deterministic claim identifier: a sha256 over
// the claim's content salted with the submission nonce, so identical-looking
// resubmissions still get distinct ids.
func ComputeClaimID(producer, plantID string, amount int64, productionTime time.Time, evidenceRef string, nonce int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%s|%d", producer, plantID, amount, productionTime.Unix(), evidenceRef, nonce)
	return hex.EncodeToString(h.Sum(nil))
}
