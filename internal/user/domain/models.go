package domain

import "time"

type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

type Preferences struct {
	EmailNotifications bool   `json:"email_notifications"`
	WeeklyDigest       bool   `json:"weekly_digest"`
	Theme              string `json:"theme"`
	Timezone           string `json:"timezone"`
	Currency           string `json:"currency"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		WeeklyDigest:       true,
		Theme:              "system",
		Timezone:           "UTC",
		Currency:           "USD",
	}
}

// User is an author's profile. ID is the identity provider subject, the
// same value every other store keys its rows by.
type User struct {
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	SubscriptionTier Tier        `json:"subscription_tier"`
	Credits          int64       `json:"credits"`
	Preferences      Preferences `json:"preferences"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
