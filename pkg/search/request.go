package search

import (
	"context"
	"encoding/json"
)

// Client executes typed search requests against one backend.
type Client interface {
	Search(ctx context.Context, index string, req *Request) (*Response, error)
}

// Pinger is implemented by clients that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Request is a search body. Size is always sent, so aggregation-only
// requests use the zero value.
type Request struct {
	Query  Query
	Size   int
	From   int
	Source []string
	Aggs   map[string]Aggregation
}

// Body renders the request as the backend JSON body.
func (r *Request) Body() map[string]any {
	body := map[string]any{"size": r.Size}
	if r.Query != nil {
		body["query"] = r.Query.Source()
	}
	if r.From > 0 {
		body["from"] = r.From
	}
	if r.Source != nil {
		body["_source"] = r.Source
	}
	if len(r.Aggs) > 0 {
		body["aggs"] = aggSources(r.Aggs)
	}
	return body
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Body())
}
