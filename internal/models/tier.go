package models

// Tier names known to the issuer.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// RateLimitTier is the policy table mapping a tier to its thresholds.
// Issued keys snapshot these numbers; editing a row here does not touch
// existing keys.
type RateLimitTier struct {
	Name              string `gorm:"primaryKey" json:"name"`
	RequestsPerMinute int    `gorm:"not null" json:"requests_per_minute"`
	RequestsPerHour   int    `gorm:"not null" json:"requests_per_hour"`
	RequestsPerDay    int    `gorm:"not null" json:"requests_per_day"`
	BurstLimit        int    `json:"burst_limit"`
	ConcurrentLimit   int    `json:"concurrent_limit"`
}

func (RateLimitTier) TableName() string {
	return "rate_limit_tiers"
}

// DefaultTiers returns the built-in tier table, used to seed the database
// on first run.
func DefaultTiers() []RateLimitTier {
	return []RateLimitTier{
		{Name: TierFree, RequestsPerMinute: 60, RequestsPerHour: 1_000, RequestsPerDay: 10_000, BurstLimit: 90, ConcurrentLimit: 5},
		{Name: TierBasic, RequestsPerMinute: 300, RequestsPerHour: 10_000, RequestsPerDay: 100_000, BurstLimit: 450, ConcurrentLimit: 20},
		{Name: TierPro, RequestsPerMinute: 1_000, RequestsPerHour: 50_000, RequestsPerDay: 1_000_000, BurstLimit: 1_500, ConcurrentLimit: 50},
		{Name: TierEnterprise, RequestsPerMinute: 5_000, RequestsPerHour: 250_000, RequestsPerDay: 10_000_000, BurstLimit: 7_500, ConcurrentLimit: 200},
	}
}

func ValidTier(name string) bool {
	switch name {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}
