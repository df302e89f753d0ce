// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const PostgrestModule = "postgrest"

type postgrest struct{}

// Postgrest installs the structured query capability.
func Postgrest() Module { return postgrest{} }

func (postgrest) Name() string { return PostgrestModule }

func (postgrest) Install(c *Client) error {
	c.queryEnabled = true
	return nil
}

// QueryBuilder starts table queries.
type QueryBuilder struct {
	client *Client
}

// Query returns the query capability, or ModuleNotInstalled.
func (c *Client) Query() (*QueryBuilder, error) {
	if !c.queryEnabled {
		return nil, NewModuleNotInstalledError(PostgrestModule)
	}
	return &QueryBuilder{client: c}, nil
}

// From starts a query on table.
func (b *QueryBuilder) From(table string) Query {
	return Query{client: b.client, table: table}
}

type filter struct {
	column string
	op     string
	value  string
}

// Query is an immutable description of a table read; every method returns a new Query.
type Query struct {
	client  *Client
	table   string
	columns []string
	filters []filter
	order   string
	limit   int
}

// Select restricts the returned columns. Without it every column is returned.
func (q Query) Select(columns ...string) Query {
	q.columns = append(q.columns[:len(q.columns):len(q.columns)], columns...)
	return q
}

// Eq keeps rows whose column equals value.
func (q Query) Eq(column string, value any) Query {
	q.filters = append(q.filters[:len(q.filters):len(q.filters)], filter{column: column, op: "eq", value: fmt.Sprint(value)})
	return q
}

// Order sorts by column.
func (q Query) Order(column string, ascending bool) Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = column + "." + dir
	return q
}

// Limit caps the number of rows. Zero means no limit.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// URL renders the request URL of the query.
func (q Query) URL() string {
	values := url.Values{}
	sel := "*"
	if len(q.columns) > 0 {
		sel = strings.Join(q.columns, ",")
	}
	values.Set("select", sel)

	for _, f := range q.filters {
		values.Add(f.column, f.op+"."+f.value)
	}
	if q.order != "" {
		values.Set("order", q.order)
	}
	if q.limit > 0 {
		values.Set("limit", strconv.Itoa(q.limit))
	}

	return q.client.endpoint("/rest/v1/"+q.table, values)
}

// Execute runs the query and decodes the JSON rows into out. A nil out discards the body.
func (q Query) Execute(ctx context.Context, out any) error {
	if q.table == "" {
		return NewConfigurationError("query has no table")
	}

	endpoint := q.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NewRequestError(err, endpoint, 0)
	}
	q.client.setHeaders(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Profile", q.client.cfg.Schema)

	resp, err := q.client.http.Do(req)
	if err != nil {
		return NewRequestError(err, endpoint, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return NewRequestError(nil, endpoint, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewDecodeError(err, endpoint)
	}

	return nil
}
