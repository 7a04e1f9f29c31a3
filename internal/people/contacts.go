package people

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

// personFields is the field mask sent with every listing request.
const personFields = "names,phoneNumbers"

// connectionsPage mirrors one response of people.connections.list.
type connectionsPage struct {
	Connections   []person `json:"connections"`
	NextPageToken string   `json:"nextPageToken"`
}

type person struct {
	ResourceName string `json:"resourceName"`
	Names        []struct {
		DisplayName string `json:"displayName"`
	} `json:"names"`
	PhoneNumbers []struct {
		Value string `json:"value"`
	} `json:"phoneNumbers"`
}

// contact keeps the first name and first phone number only.
func (p person) contact() model.Contact {
	c := model.Contact{ResourceName: p.ResourceName}
	if len(p.Names) > 0 {
		c.Name = p.Names[0].DisplayName
	}
	if len(p.PhoneNumbers) > 0 {
		c.Phone = p.PhoneNumbers[0].Value
	}
	return c
}

// Result is the outcome of one aggregation. On failure it still reports how
// far the aggregation got.
type Result struct {
	Contacts []model.Contact
	Pages    int // listing pages successfully fetched
}

// AggregationError is returned when an aggregation stops early. Pages and
// Fetched describe the progress made before Err.
type AggregationError struct {
	Pages   int
	Fetched int
	Err     error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("people: contact aggregation stopped after %d pages (%d contacts): %v",
		e.Pages, e.Fetched, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// FetchAllContacts walks the connections listing from the first page, following
// nextPageToken until a response omits it, and returns every contact in page
// order. Pages are fetched strictly one after another.
//
// Any failed request aborts the walk. The returned error then is an
// *AggregationError wrapping an apperror.ErrFetch kind, or
// apperror.ErrPaginationExhausted when the listing is still handing out
// cursors after MaxPages pages. The Result keeps the partial progress.
func (c *Client) FetchAllContacts(ctx context.Context, cred *model.Credential) (Result, error) {
	var res Result
	if !cred.Valid() {
		return res, apperror.AuthFailed("not signed in", nil)
	}

	hc := c.httpClient(ctx, cred)
	cursor := ""
	for {
		if res.Pages >= c.cfg.MaxPages {
			return res, c.fail(res, apperror.PaginationExhausted("contacts", c.cfg.MaxPages))
		}

		page, err := c.fetchPage(ctx, hc, cursor)
		if err != nil {
			return res, c.fail(res, apperror.FetchFailed("contacts", err))
		}
		res.Pages++
		c.metrics.PageFetched()

		for _, p := range page.Connections {
			res.Contacts = append(res.Contacts, p.contact())
		}

		if page.NextPageToken == "" {
			break
		}
		cursor = page.NextPageToken
	}

	c.metrics.Aggregation(nil)
	c.logger.Debug("contacts aggregated",
		slog.Int("pages", res.Pages),
		slog.Int("contacts", len(res.Contacts)),
	)
	return res, nil
}

func (c *Client) fail(res Result, err error) error {
	c.metrics.Aggregation(err)
	aggErr := &AggregationError{Pages: res.Pages, Fetched: len(res.Contacts), Err: err}
	c.logger.Debug("contact aggregation stopped", slog.String("error", aggErr.Error()))
	return aggErr
}

// fetchPage requests one listing page. An empty cursor requests the first page.
func (c *Client) fetchPage(ctx context.Context, hc *http.Client, cursor string) (*connectionsPage, error) {
	u, err := url.Parse(c.cfg.ConnectionsURL)
	if err != nil {
		return nil, fmt.Errorf("people: parsing connections URL: %w", err)
	}
	q := u.Query()
	q.Set("personFields", personFields)
	q.Set("pageSize", strconv.Itoa(PageSize))
	if cursor != "" {
		q.Set("pageToken", cursor)
	}
	u.RawQuery = q.Encode()

	var page connectionsPage
	if err := getJSON(ctx, hc, u.String(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
