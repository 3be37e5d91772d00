package entity

import "time"

// Brief is a generated content brief that corrects a false claim
type Brief struct {
	ID        string    `json:"id"`
	DomainID  string    `json:"domain_id"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority"`
	Target    string    `json:"target"`
	Content   string    `json:"content"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
}
