package storage

import (
	"errors"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

var ErrDuplicateMinerID = errors.New("duplicate miner id")

// Fleet is the stored miner list. It is always read and written as a whole.
type Fleet struct {
	Miners  []mining.MinerSpec `json:"miners"`
	SavedAt time.Time          `json:"savedAt,omitempty"` // zero until the first save
}

const (
	metaSeeded  = "seeded"
	metaSavedAt = "saved_at"
)
