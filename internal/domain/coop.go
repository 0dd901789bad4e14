package domain

import (
	"encoding/json"
	"time"
)

// Coop is a tenant. Users, sessions and decisions always belong to exactly one coop.
type Coop struct {
	Identifier           string
	Name                 string
	Hostname             *string
	Config               json.RawMessage
	Logo                 *string
	NeedUserVerification bool
	DisableSignUp        bool
	CreatedAt            time.Time
}
