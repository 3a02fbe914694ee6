package zendesk

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// maxShowMany is the largest id list users/show_many.json accepts.
const maxShowMany = 100

// resolveUsers returns a user index covering the requesters and assignees of
// tickets. Users already known (sideloaded) are reused; the rest are looked
// up in batches. Lookup failures leave users unresolved so the caller
// substitutes placeholders.
func (c *Client) resolveUsers(ctx context.Context, tickets []rawTicket, known []rawUser) map[int64]rawUser {
	users := make(map[int64]rawUser, len(known))
	for _, u := range known {
		users[u.ID] = u
	}

	missing := make(map[int64]struct{})
	for _, t := range tickets {
		if t.RequesterID != 0 {
			if _, ok := users[t.RequesterID]; !ok {
				missing[t.RequesterID] = struct{}{}
			}
		}
		if t.AssigneeID != nil && *t.AssigneeID != 0 {
			if _, ok := users[*t.AssigneeID]; !ok {
				missing[*t.AssigneeID] = struct{}{}
			}
		}
	}
	if len(missing) == 0 {
		return users
	}

	ids := make([]int64, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for start := 0; start < len(ids); start += maxShowMany {
		end := start + maxShowMany
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := c.showMany(ctx, ids[start:end])
		if err != nil {
			c.logger.Warn("user lookup failed; using placeholder identities",
				"users", end-start,
				"error", err,
			)
			continue
		}
		for _, u := range batch {
			users[u.ID] = u
		}
	}
	return users
}

func (c *Client) showMany(ctx context.Context, ids []int64) ([]rawUser, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(parts, ","))

	var resp usersResponse
	if err := c.do(ctx, "show_users", http.MethodGet, "users/show_many.json", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}
