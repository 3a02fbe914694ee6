package zendesk

import (
	"strconv"

	"github.com/cesdash/cesdash/internal/model"
)

// normalize converts an upstream ticket into a model.Ticket.
// fieldID 0 leaves every ticket unscored.
func normalize(raw rawTicket, users map[int64]rawUser, fieldID int64) model.Ticket {
	ticket := model.Ticket{
		ID:          strconv.FormatInt(raw.ID, 10),
		Subject:     raw.Subject,
		Description: raw.Description,
		Status:      model.TicketStatus(raw.Status),
		Priority:    model.Priority(raw.Priority),
		CreatedAt:   raw.CreatedAt.UTC(),
		UpdatedAt:   raw.UpdatedAt.UTC(),
		Requester:   requester(raw.RequesterID, users),
		Assignee:    assignee(raw.AssigneeID, users),
		Tags:        raw.Tags,
		Channel:     model.NormalizeChannel(raw.Via.Channel),
	}
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}
	if score, ok := extractCESScore(raw.CustomFields, fieldID); ok {
		ticket.CESScore = model.IntPtr(score)
	}
	return ticket
}

// extractCESScore reads the CES custom field. Invalid values are absent.
func extractCESScore(fields []customField, fieldID int64) (int, bool) {
	if fieldID == 0 {
		return 0, false
	}
	for _, f := range fields {
		if f.ID == fieldID {
			return model.ParseCESScore(f.Value)
		}
	}
	return 0, false
}

func requester(id int64, users map[int64]rawUser) model.Requester {
	r := model.Requester{
		ID:    strconv.FormatInt(id, 10),
		Name:  model.UnknownUserName,
		Email: model.UnknownUserEmail,
	}
	if u, ok := users[id]; ok {
		if u.Name != "" {
			r.Name = u.Name
		}
		if u.Email != "" {
			r.Email = u.Email
		}
	}
	return r
}

func assignee(id *int64, users map[int64]rawUser) *model.Assignee {
	if id == nil || *id == 0 {
		return nil
	}
	a := &model.Assignee{
		ID:   strconv.FormatInt(*id, 10),
		Name: model.UnknownUserName,
	}
	if u, ok := users[*id]; ok && u.Name != "" {
		a.Name = u.Name
	}
	return a
}
