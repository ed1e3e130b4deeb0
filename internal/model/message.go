package model

import "time"

// Message is a single normalized piece of correspondence. Messages are
// immutable after ingestion; every downstream stage cites them by ID.
type Message struct {
	ID         string    `json:"message_id"`
	Sender     string    `json:"from"`
	Recipients []string  `json:"to"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"date"`
}

// ProjectContext is an ordered group of related messages believed to belong
// to one project. Contexts are independent units of work: they carry no
// cross-context dependencies and may be processed in parallel.
type ProjectContext struct {
	ID         string   `json:"context_id"`
	Name       string   `json:"name"`
	MessageIDs []string `json:"message_ids"`
}
