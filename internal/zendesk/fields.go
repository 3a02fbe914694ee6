package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// cesFieldKeywords match a catalog title (case-insensitive substring).
var cesFieldKeywords = []string{"ces", "customer effort", "effort score"}

// FindCESField returns the first field whose title matches a CES keyword.
func FindCESField(fields []TicketField) (TicketField, bool) {
	for _, f := range fields {
		title := strings.ToLower(f.Title)
		for _, kw := range cesFieldKeywords {
			if strings.Contains(title, kw) {
				return f, true
			}
		}
	}
	return TicketField{}, false
}

// ListTicketFields returns the ticket field catalog.
func (c *Client) ListTicketFields(ctx context.Context) ([]TicketField, error) {
	var resp fieldsResponse
	if err := c.do(ctx, "list_ticket_fields", http.MethodGet, "ticket_fields.json", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TicketFields, nil
}

// CESFieldID returns the custom field ID holding CES scores, or 0 when the
// account has none. A configured ID is used as-is; otherwise the catalog is
// probed once and the outcome memoized. Probe failures are returned and not
// memoized.
//
// Concurrent callers share one probe. It runs detached from any caller's
// context, bounded by the client timeout, so a caller that gives up only
// stops waiting.
func (c *Client) CESFieldID(ctx context.Context) (int64, error) {
	if c.configuredFieldID > 0 {
		return c.configuredFieldID, nil
	}

	c.fieldMu.RLock()
	if c.fieldResolved {
		id := c.resolvedFieldID
		c.fieldMu.RUnlock()
		return id, nil
	}
	c.fieldMu.RUnlock()

	ch := c.fieldGroup.DoChan("ces_field", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.resolveCESField(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Client) resolveCESField(ctx context.Context) (int64, error) {
	if c.fieldCache != nil {
		if id, err := c.fieldCache.GetCESFieldID(ctx); err == nil {
			c.storeFieldID(id)
			return id, nil
		}
	}

	fields, err := c.ListTicketFields(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe ticket field catalog: %w", err)
	}

	var id int64
	if field, ok := FindCESField(fields); ok {
		id = field.ID
		c.logger.Info("resolved CES field from catalog",
			"field_id", field.ID,
			"title", field.Title,
		)
	} else {
		c.logger.Warn("no CES field in ticket catalog; tickets will be unscored",
			"fields", len(fields),
		)
	}

	c.storeFieldID(id)
	if c.fieldCache != nil {
		if err := c.fieldCache.SetCESFieldID(ctx, id); err != nil {
			c.logger.Debug("failed to cache CES field id", "error", err)
		}
	}
	return id, nil
}

func (c *Client) storeFieldID(id int64) {
	c.fieldMu.Lock()
	c.resolvedFieldID = id
	c.fieldResolved = true
	c.fieldMu.Unlock()
}
