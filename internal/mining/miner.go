package mining

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Algorithm is the proof-of-work family a miner hashes
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	Scrypt Algorithm = "scrypt"
)

// Coin is a supported cryptocurrency symbol
type Coin string

const (
	BTC  Coin = "BTC"
	LTC  Coin = "LTC"
	DOGE Coin = "DOGE"
)

// AllCoins lists every coin the dashboard tracks, in display order
var AllCoins = []Coin{BTC, LTC, DOGE}

// HashrateUnit is the display unit of MinerSpec.Hashrate
type HashrateUnit string

const (
	TeraHash HashrateUnit = "Th/s"
	GigaHash HashrateUnit = "Gh/s"
)

// DefaultManagementFeeRate is charged per kWh consumed when a miner does not set its own rate.
const DefaultManagementFeeRate = 0.002

// BlockRewards holds the fixed coin amount paid per block
var BlockRewards = map[Coin]float64{
	BTC:  3.125,
	LTC:  6.25,
	DOGE: 10000,
}

// Profile describes what an algorithm mines and how its hashrate is scaled
type Profile struct {
	Algorithm Algorithm    `json:"algorithm"`
	Coins     []Coin       `json:"coins"`
	Unit      HashrateUnit `json:"hashrateUnit"`
	UnitScale float64      `json:"unitScale"` // hashes per second in one Unit
}

// profiles is the only place coins and hashrate units are tied to an algorithm.
// Scrypt merged-mines LTC and DOGE from the same hashrate.
var profiles = map[Algorithm]Profile{
	SHA256: {Algorithm: SHA256, Coins: []Coin{BTC}, Unit: TeraHash, UnitScale: 1e12},
	Scrypt: {Algorithm: Scrypt, Coins: []Coin{LTC, DOGE}, Unit: GigaHash, UnitScale: 1e9},
}

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrInvalidMiner     = errors.New("invalid miner")
)

// ProfileFor returns the lookup entry for an algorithm
func ProfileFor(a Algorithm) (Profile, error) {
	p, ok := profiles[a]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, a)
	}
	coins := make([]Coin, len(p.Coins))
	copy(coins, p.Coins)
	p.Coins = coins
	return p, nil
}

// Profiles returns every algorithm profile in a stable order
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, a := range []Algorithm{SHA256, Scrypt} {
		p, _ := ProfileFor(a)
		out = append(out, p)
	}
	return out
}

// MinerSpec is a user-defined hardware record. Coins and HashrateUnit are
// derived from Algorithm by Normalize and are never set independently.
type MinerSpec struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Algorithm         Algorithm    `json:"algorithm"`
	Coins             []Coin       `json:"coins"`
	Hashrate          float64      `json:"hashrate"`
	HashrateUnit      HashrateUnit `json:"hashrateUnit"`
	Power             float64      `json:"power"`    // watts
	Quantity          int          `json:"quantity"` // identical machines
	ElectricityRate   float64      `json:"electricityRate"`   // $/kWh
	ManagementFeeRate float64      `json:"managementFeeRate"` // $/kWh consumed
}

// UnmarshalJSON applies the default management fee when the field is absent.
func (m *MinerSpec) UnmarshalJSON(data []byte) error {
	type plain MinerSpec
	p := plain{ManagementFeeRate: DefaultManagementFeeRate}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MinerSpec(p)
	return nil
}

// Profile returns the algorithm profile of the miner
func (m MinerSpec) Profile() (Profile, error) {
	return ProfileFor(m.Algorithm)
}

// Mines reports whether the miner produces the given coin
func (m MinerSpec) Mines(c Coin) bool {
	for _, mc := range m.Coins {
		if mc == c {
			return true
		}
	}
	return false
}

// Normalize validates the record and derives every algorithm-dependent field.
// An empty ID is generated from the name.
func (m MinerSpec) Normalize() (MinerSpec, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Algorithm = Algorithm(strings.ToLower(strings.TrimSpace(string(m.Algorithm))))

	p, err := ProfileFor(m.Algorithm)
	if err != nil {
		return MinerSpec{}, err
	}

	switch {
	case m.Name == "":
		return MinerSpec{}, fmt.Errorf("%w: name is required", ErrInvalidMiner)
	case !validAmount(m.Hashrate):
		return MinerSpec{}, fmt.Errorf("%w: hashrate must be >= 0", ErrInvalidMiner)
	case !validAmount(m.Power):
		return MinerSpec{}, fmt.Errorf("%w: power must be >= 0", ErrInvalidMiner)
	case m.Quantity < 1:
		return MinerSpec{}, fmt.Errorf("%w: quantity must be >= 1", ErrInvalidMiner)
	case !validAmount(m.ElectricityRate):
		return MinerSpec{}, fmt.Errorf("%w: electricity rate must be >= 0", ErrInvalidMiner)
	case !validAmount(m.ManagementFeeRate):
		return MinerSpec{}, fmt.Errorf("%w: management fee rate must be >= 0", ErrInvalidMiner)
	}

	m.Coins = p.Coins
	m.HashrateUnit = p.Unit
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		m.ID = NewMinerID(m.Name)
	}
	return m, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// NewMinerID builds a readable unique id such as "s21-pro-245th-s-1f2e3d4c"
func NewMinerID(name string) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(name), "-"), "-")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if slug == "" {
		return "miner-" + suffix
	}
	return slug + "-" + suffix
}

// DefaultMiners is the fleet a fresh store starts with
func DefaultMiners() []MinerSpec {
	seed := []MinerSpec{
		{ID: "d1-silver-16.2", Name: "D1 Silver 16.2Gh/s", Algorithm: Scrypt, Hashrate: 16.2, Power: 3510, Quantity: 3, ElectricityRate: 0.05},
		{ID: "d1-lite-14", Name: "D1 Lite 14Gh/s", Algorithm: Scrypt, Hashrate: 14, Power: 3000, Quantity: 2, ElectricityRate: 0.05},
		{ID: "s21pro-245", Name: "S21 Pro 245Th/s", Algorithm: SHA256, Hashrate: 245, Power: 3531, Quantity: 2, ElectricityRate: 0.06},
		{ID: "s21pro-234", Name: "S21 Pro 234Th/s", Algorithm: SHA256, Hashrate: 234, Power: 3400, Quantity: 1, ElectricityRate: 0.06},
		{ID: "s21plus-234", Name: "S21+ 234Th/s", Algorithm: SHA256, Hashrate: 234, Power: 3400, Quantity: 2, ElectricityRate: 0.06},
		{ID: "s21plus-220", Name: "S21+ 220Th/s", Algorithm: SHA256, Hashrate: 220, Power: 3200, Quantity: 1, ElectricityRate: 0.06},
	}
	miners := make([]MinerSpec, 0, len(seed))
	for _, m := range seed {
		m.ManagementFeeRate = DefaultManagementFeeRate
		n, err := m.Normalize()
		if err != nil {
			panic(err)
		}
		miners = append(miners, n)
	}
	return miners
}
