package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Response is the typed result of a search call.
type Response struct {
	Took         int64
	Total        int64
	Hits         []Hit
	Aggregations AggregationResults
}

// Hit is one returned document. Source holds the (possibly filtered) _source.
type Hit struct {
	ID     string
	Source json.RawMessage
}

// Decode unmarshals the hit source into v.
func (h Hit) Decode(v any) error {
	if len(h.Source) == 0 {
		return fmt.Errorf("hit %s has no source", h.ID)
	}
	return json.Unmarshal(h.Source, v)
}

// AggregationResults maps aggregation names to results.
// Lookups on missing names return nil, and every accessor on a nil
// *AggregationResult returns an empty value, so chains never panic.
type AggregationResults map[string]*AggregationResult

// Get returns the named result or nil.
func (a AggregationResults) Get(name string) *AggregationResult {
	if a == nil {
		return nil
	}
	return a[name]
}

// AggregationResult is a single aggregation node (filter, terms, nested, top_hits...).
type AggregationResult struct {
	DocCount int64
	Buckets  []Bucket
	Hits     []Hit
	Aggs     AggregationResults
}

// Sub returns a named sub-aggregation.
func (r *AggregationResult) Sub(name string) *AggregationResult {
	if r == nil {
		return nil
	}
	return r.Aggs.Get(name)
}

// BucketList returns the terms buckets, or nil.
func (r *AggregationResult) BucketList() []Bucket {
	if r == nil {
		return nil
	}
	return r.Buckets
}

// TopHit returns the first sample hit of a top_hits aggregation.
func (r *AggregationResult) TopHit() (Hit, bool) {
	if r == nil || len(r.Hits) == 0 {
		return Hit{}, false
	}
	return r.Hits[0], true
}

// Count returns doc_count, or 0.
func (r *AggregationResult) Count() int64 {
	if r == nil {
		return 0
	}
	return r.DocCount
}

// Bucket is one terms bucket. Key is always rendered as a string.
type Bucket struct {
	Key      string
	DocCount int64
	Aggs     AggregationResults
}

// Sub returns a named sub-aggregation of the bucket.
func (b Bucket) Sub(name string) *AggregationResult {
	return b.Aggs.Get(name)
}

type rawHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type rawResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total json.RawMessage `json:"total"`
		Hits  []rawHit        `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// ParseResponse decodes a backend search response body.
// Aggregation nodes that cannot be decoded are dropped rather than failing
// the whole response.
func ParseResponse(r io.Reader) (*Response, error) {
	var raw rawResponse
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	resp := &Response{
		Took:         raw.Took,
		Total:        parseTotal(raw.Hits.Total),
		Hits:         convertHits(raw.Hits.Hits),
		Aggregations: parseAggregations(raw.Aggregations),
	}
	return resp, nil
}

// parseTotal accepts both {"value": N, "relation": "eq"} and a bare number.
func parseTotal(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	var n int64
	_ = json.Unmarshal(raw, &n)
	return n
}

func convertHits(raw []rawHit) []Hit {
	if len(raw) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, Hit(h))
	}
	return hits
}

func parseAggregations(raw map[string]json.RawMessage) AggregationResults {
	if len(raw) == 0 {
		return nil
	}
	out := make(AggregationResults, len(raw))
	for name, body := range raw {
		if agg, err := parseAggregation(body); err == nil {
			out[name] = agg
		}
	}
	return out
}

// Keys in an aggregation object that are metadata, not sub-aggregations.
var aggregationMetaKeys = map[string]bool{
	"meta":                        true,
	"doc_count_error_upper_bound": true,
	"sum_other_doc_count":         true,
	"key":                         true,
	"key_as_string":               true,
}

func parseAggregation(raw json.RawMessage) (*AggregationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	res := &AggregationResult{}
	subs := make(map[string]json.RawMessage)
	for name, value := range fields {
		switch name {
		case "doc_count":
			_ = json.Unmarshal(value, &res.DocCount)
		case "buckets":
			res.Buckets = parseBuckets(value)
		case "hits":
			var top struct {
				Hits []rawHit `json:"hits"`
			}
			if err := json.Unmarshal(value, &top); err == nil {
				res.Hits = convertHits(top.Hits)
			}
		default:
			if !aggregationMetaKeys[name] && isObject(value) {
				subs[name] = value
			}
		}
	}
	res.Aggs = parseAggregations(subs)
	return res, nil
}

func parseBuckets(raw json.RawMessage) []Bucket {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	buckets := make([]Bucket, 0, len(items))
	for _, item := range items {
		b := Bucket{Key: bucketKey(item["key"])}
		if s := bucketKey(item["key_as_string"]); s != "" {
			b.Key = s
		}
		_ = json.Unmarshal(item["doc_count"], &b.DocCount)

		subs := make(map[string]json.RawMessage)
		for name, value := range item {
			if name != "doc_count" && !aggregationMetaKeys[name] && isObject(value) {
				subs[name] = value
			}
		}
		b.Aggs = parseAggregations(subs)
		if b.Key != "" {
			buckets = append(buckets, b)
		}
	}
	return buckets
}

// bucketKey renders a bucket key as text. Keys arrive as strings for keyword
// fields and as numbers or booleans otherwise. Numbers keep their literal
// digits. Null or missing keys render empty.
func bucketKey(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(trimmed)
	}
	switch key := v.(type) {
	case string:
		return key
	case json.Number:
		return key.String()
	case bool:
		return strconv.FormatBool(key)
	default:
		return string(trimmed)
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
