package models

import "time"

// User is a viewer profile mapped from Keycloak claims. Plan is the raw
// subscription plan as stored by billing; nil means no plan was recorded.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Sub       string    `bson:"sub" json:"sub"` // OIDC subject
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Plan      *string   `bson:"plan,omitempty" json:"plan"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
