package domain

import "time"

// Subscriber is a newsletter sign-up. Delivery is handled elsewhere.
type Subscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tenant    string    `json:"tenant"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
