package roster

import (
	"time"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/directory"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/supervision"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

// Bookable is one provider/payer pair patients may book. Via names the
// supervising attending for supervised billing.
type Bookable struct {
	ProviderID  uuid.UUID             `db:"provider_id" json:"provider_id"`
	PayerID     uuid.UUID             `db:"payer_id" json:"payer_id"`
	BillingMode directory.BillingMode `db:"billing_mode" json:"billing_mode"`
	Via         *uuid.UUID            `db:"via_attending_id" json:"via_attending_id,omitempty"`
	AsOf        date.Date             `db:"as_of" json:"as_of"`
}

type Inputs struct {
	Providers    []*directory.Provider
	Payers       []*directory.Payer
	Networks     []*directory.Network
	Supervisions []*supervision.Relationship
}

type Result struct {
	AsOf       date.Date     `json:"as_of"`
	Total      int           `json:"total"`
	Direct     int           `json:"direct"`
	Supervised int           `json:"supervised"`
	Duration   time.Duration `json:"duration_ns"`
}
