// Package account holds API account types.
package account

// Tier is a subscription level.
type Tier string

// Subscription tiers.
const (
	Free Tier = "free"
	Pro  Tier = "pro"
)

// User is an authenticated API account.
type User struct {
	ID       int64
	Username string
	Name     string
	Email    string
	Tier     Tier
}

// IsPro reports whether the user holds a pro subscription.
func (u User) IsPro() bool { return u.Tier == Pro }

// TierFor returns Pro when proGroupID is among groups.
func TierFor(groups []int64, proGroupID int64) Tier {
	for _, g := range groups {
		if g == proGroupID {
			return Pro
		}
	}
	return Free
}

// Identity is an account with its group memberships, before tier resolution.
type Identity struct {
	User   User
	Groups []int64
}
