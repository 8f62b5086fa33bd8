package models

const (
	RoleAdmin  = "ADMIN"
	RoleSeller = "SELLER"
	RoleClient = "CLIENT"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the remote API answer to a successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// RegionalConfig drives price and date formatting for one visitor.
type RegionalConfig struct {
	Owner    string `json:"-" bson:"owner"`
	Locale   string `json:"locale" bson:"locale"`
	Currency string `json:"currency" bson:"currency"`
	TimeZone string `json:"timeZone" bson:"timeZone"`
}

func DefaultRegionalConfig() RegionalConfig {
	return RegionalConfig{
		Locale:   "es-CO",
		Currency: "COP",
		TimeZone: "America/Bogota",
	}
}
