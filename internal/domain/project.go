package domain

import "time"

// Project describes a registered source repository and its public subdomain.
type Project struct {
	ID        string
	Name      string
	GitURL    string
	Subdomain string
	CreatedAt time.Time
}
