package ledger

import (
	"time"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/producers"
)

// Account is a fungible credit balance plus its lifetime retirement total.
// Conservation law: sum(balances) + total retired == total minted.
type Account struct {
	Address      string `json:"address" db:"address"`
	Balance      int64  `json:"balance" db:"balance"`
	RetiredTotal int64  `json:"retired_total" db:"retired_total"`
}

// CreditBatch is the provenance record linking minted credits back to the
// claim and producer that justified them. Immutable except for the one-way
// retired flag, which is informational: retirement burns from a holder's
// fungible balance, not from a batch.
type CreditBatch struct {
	ID              int64                  `json:"id" db:"id"`
	ProducerAddress string                 `json:"producer_address" db:"producer_address"`
	Amount          int64                  `json:"amount" db:"amount"`
	ClaimID         string                 `json:"claim_id" db:"claim_id"`
	PlantID         string                 `json:"plant_id" db:"plant_id"`
	EnergySource    producers.EnergySource `json:"energy_source" db:"energy_source"`
	Retired         bool                   `json:"retired" db:"retired"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

// State is the singleton ledger control row.
type State struct {
	Paused       bool  `json:"paused" db:"paused"`
	TotalMinted  int64 `json:"total_minted" db:"total_minted"`
	TotalRetired int64 `json:"total_retired" db:"total_retired"`
	GateVersion  int64 `json:"gate_version" db:"gate_version"`
}

// TotalSupply is the spendable supply: minted minus retired.
func (s *State) TotalSupply() int64 {
	return s.TotalMinted - s.TotalRetired
}

// TransferEvent is the human-auditable record of a balance movement.
// Downstream compliance consumers key off the redundant timestamp.
type TransferEvent struct {
	ID          int64     `json:"id" db:"id"`
	FromAddress string    `json:"from_address" db:"from_address"`
	ToAddress   string    `json:"to_address" db:"to_address"`
	Amount      int64     `json:"amount" db:"amount"`
	OccurredAt  time.Time `json:"occurred_at" db:"occurred_at"`
}

// Retirement is a permanent burn with its compliance certificate.
type Retirement struct {
	ID                int64     `json:"id" db:"id"`
	Holder            string    `json:"holder" db:"holder"`
	Amount            int64     `json:"amount" db:"amount"`
	Reason            string    `json:"reason" db:"reason"`
	CertificateNumber string    `json:"certificate_number" db:"certificate_number"`
	OccurredAt        time.Time `json:"occurred_at" db:"occurred_at"`
}
