package zendesk

import "time"

// TicketField is an entry of the upstream ticket field catalog.
type TicketField struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type customField struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

type via struct {
	Channel string `json:"channel"`
}

type rawTicket struct {
	ID           int64         `json:"id"`
	Subject      string        `json:"subject"`
	Description  string        `json:"description"`
	Status       string        `json:"status"`
	Priority     string        `json:"priority"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	RequesterID  int64         `json:"requester_id"`
	AssigneeID   *int64        `json:"assignee_id"`
	Tags         []string      `json:"tags"`
	Via          via           `json:"via"`
	CustomFields []customField `json:"custom_fields"`
}

type rawUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ticketsResponse struct {
	Tickets  []rawTicket `json:"tickets"`
	Users    []rawUser   `json:"users"`
	NextPage *string     `json:"next_page"`
	Count    int         `json:"count"`
}

type ticketResponse struct {
	Ticket rawTicket `json:"ticket"`
	Users  []rawUser `json:"users"`
}

type searchResult struct {
	rawTicket
	ResultType string `json:"result_type"`
}

type searchResponse struct {
	Results  []searchResult `json:"results"`
	NextPage *string        `json:"next_page"`
	Count    int            `json:"count"`
}

type usersResponse struct {
	Users []rawUser `json:"users"`
}

type fieldsResponse struct {
	TicketFields []TicketField `json:"ticket_fields"`
}

type cesUpdate struct {
	Ticket cesUpdateTicket `json:"ticket"`
}

type cesUpdateTicket struct {
	CustomFields []customField `json:"custom_fields"`
}
