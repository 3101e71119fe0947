package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// MemoryClient is an in-process backend that evaluates the typed DSL over
// roaring-bitmap inverted indexes. It backs local development fixtures and
// service tests; it supports exactly the query and aggregation types this
// package defines.
type MemoryClient struct {
	mu      sync.RWMutex
	indices map[string]*memoryIndex
}

var _ Client = (*MemoryClient)(nil)
var _ Pinger = (*MemoryClient)(nil)

// NewMemoryClient creates an empty backend.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{indices: make(map[string]*memoryIndex)}
}

// fieldIndex maps field -> value -> ordinals holding that value.
type fieldIndex map[string]map[string]*roaring.Bitmap

func (f fieldIndex) add(field, value string, ord uint32) {
	values, ok := f[field]
	if !ok {
		values = make(map[string]*roaring.Bitmap)
		f[field] = values
	}
	bm, ok := values[value]
	if !ok {
		bm = roaring.New()
		values[value] = bm
	}
	bm.Add(ord)
}

type memoryDoc struct {
	id     string
	source map[string]any
}

type nestedIndex struct {
	parents []uint32
	entries []map[string]any
	fields  fieldIndex
}

type memoryIndex struct {
	docs   []memoryDoc
	ids    map[string]uint32
	fields fieldIndex
	nested map[string]*nestedIndex
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{
		ids:    make(map[string]uint32),
		fields: make(fieldIndex),
		nested: make(map[string]*nestedIndex),
	}
}

// Index stores doc under id in index. doc may be any JSON-encodable value
// whose top level is an object. Arrays of objects become nested documents.
// Re-indexing an existing id is rejected.
func (c *MemoryClient) Index(index, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	var source map[string]any
	if err := json.Unmarshal(raw, &source); err != nil {
		return fmt.Errorf("document %s is not a JSON object: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.indices[index]
	if !ok {
		idx = newMemoryIndex()
		c.indices[index] = idx
	}
	if _, dup := idx.ids[id]; dup {
		return fmt.Errorf("document %s already indexed in %s", id, index)
	}

	ord := uint32(len(idx.docs))
	idx.docs = append(idx.docs, memoryDoc{id: id, source: source})
	idx.ids[id] = ord

	for field, value := range source {
		idx.indexValue(field, value, ord)
	}
	return nil
}

func (idx *memoryIndex) indexValue(field string, value any, ord uint32) {
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				idx.indexNested(field, obj, ord)
				continue
			}
			if s, ok := scalarString(item); ok {
				idx.fields.add(field, s, ord)
			}
		}
	case map[string]any:
		for sub, subValue := range v {
			idx.indexValue(field+"."+sub, subValue, ord)
		}
	default:
		if s, ok := scalarString(v); ok {
			idx.fields.add(field, s, ord)
		}
	}
}

func (idx *memoryIndex) indexNested(path string, obj map[string]any, parent uint32) {
	n, ok := idx.nested[path]
	if !ok {
		n = &nestedIndex{fields: make(fieldIndex)}
		idx.nested[path] = n
	}
	ord := uint32(len(n.entries))
	n.entries = append(n.entries, obj)
	n.parents = append(n.parents, parent)

	for sub, value := range obj {
		field := path + "." + sub
		if list, ok := value.([]any); ok {
			for _, item := range list {
				if s, ok := scalarString(item); ok {
					n.fields.add(field, s, ord)
				}
			}
			continue
		}
		if s, ok := scalarString(value); ok {
			n.fields.add(field, s, ord)
		}
	}
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// Search evaluates req against index.
func (c *MemoryClient) Search(ctx context.Context, index string, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.indices[index]
	if !ok {
		return nil, &BackendError{
			Index:      index,
			StatusCode: http.StatusNotFound,
			Type:       "index_not_found_exception",
			Reason:     "no such index [" + index + "]",
		}
	}

	root := idx.rootScope()
	matched, err := root.eval(req.Query)
	if err != nil {
		return nil, &BackendError{Index: index, StatusCode: http.StatusBadRequest, Type: "parsing_exception", Reason: err.Error()}
	}

	resp := &Response{Total: int64(matched.GetCardinality())}

	if req.Size > 0 {
		skipped := 0
		it := matched.Iterator()
		for it.HasNext() && len(resp.Hits) < req.Size {
			ord := it.Next()
			if skipped < req.From {
				skipped++
				continue
			}
			resp.Hits = append(resp.Hits, root.hit(ord, req.Source))
		}
	}

	if len(req.Aggs) > 0 {
		resp.Aggregations, err = root.evalAggs(req.Aggs, matched)
		if err != nil {
			return nil, &BackendError{Index: index, StatusCode: http.StatusBadRequest, Type: "aggregation_execution_exception", Reason: err.Error()}
		}
	}
	return resp, nil
}

// Ping always succeeds.
func (c *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of documents in index.
func (c *MemoryClient) Count(index string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx, ok := c.indices[index]; ok {
		return len(idx.docs)
	}
	return 0
}

// scope is the document space a query or aggregation runs in: either the root
// documents of an index or the nested objects under one path.
type scope struct {
	idx    *memoryIndex
	nested *nestedIndex
	path   string
}

func (idx *memoryIndex) rootScope() scope {
	return scope{idx: idx}
}

func (s scope) size() uint32 {
	if s.nested != nil {
		return uint32(len(s.nested.entries))
	}
	return uint32(len(s.idx.docs))
}

func (s scope) fields() fieldIndex {
	if s.nested != nil {
		return s.nested.fields
	}
	return s.idx.fields
}

func (s scope) all() *roaring.Bitmap {
	bm := roaring.New()
	if n := s.size(); n > 0 {
		bm.AddRange(0, uint64(n))
	}
	return bm
}

// values returns the indexed values of field, ignoring ".keyword" sub-field
// and "^boost" suffixes.
func (s scope) values(field string) map[string]*roaring.Bitmap {
	return s.fields()[normalizeField(field)]
}

func normalizeField(field string) string {
	if i := strings.IndexByte(field, '^'); i >= 0 {
		field = field[:i]
	}
	return strings.TrimSuffix(field, ".keyword")
}

func (s scope) hit(ord uint32, include []string) Hit {
	var id string
	var source map[string]any
	if s.nested != nil {
		id = strconv.FormatUint(uint64(ord), 10)
		source = s.nested.entries[ord]
	} else {
		doc := s.idx.docs[ord]
		id, source = doc.id, doc.source
	}

	if include != nil {
		projected := make(map[string]any, len(include))
		for _, field := range include {
			if v, ok := source[field]; ok {
				projected[field] = v
			}
		}
		source = projected
	}

	raw, _ := json.Marshal(source)
	return Hit{ID: id, Source: raw}
}

func (s scope) evalAggs(aggs map[string]Aggregation, docs *roaring.Bitmap) (AggregationResults, error) {
	if len(aggs) == 0 {
		return nil, nil
	}
	out := make(AggregationResults, len(aggs))
	for name, agg := range aggs {
		res, err := s.evalAgg(agg, docs)
		if err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", name, err)
		}
		out[name] = res
	}
	return out, nil
}

func (s scope) evalAgg(agg Aggregation, docs *roaring.Bitmap) (*AggregationResult, error) {
	switch a := agg.(type) {
	case FilterAggregation:
		matched, err := s.eval(a.Filter)
		if err != nil {
			return nil, err
		}
		sub := roaring.And(docs, matched)
		subAggs, err := s.evalAggs(a.Aggs, sub)
		if err != nil {
			return nil, err
		}
		return &AggregationResult{DocCount: int64(sub.GetCardinality()), Aggs: subAggs}, nil

	case TermsAggregation:
		return s.evalTerms(a, docs)

	case TopHitsAggregation:
		res := &AggregationResult{DocCount: int64(docs.GetCardinality())}
		it := docs.Iterator()
		for it.HasNext() && len(res.Hits) < a.Size {
			res.Hits = append(res.Hits, s.hit(it.Next(), a.SourceFields))
		}
		return res, nil

	case NestedAggregation:
		if s.nested != nil {
			return nil, fmt.Errorf("nested aggregation %q inside nested scope", a.Path)
		}
		n := s.idx.nested[a.Path]
		entries := roaring.New()
		if n != nil {
			for ord, parent := range n.parents {
				if docs.Contains(parent) {
					entries.Add(uint32(ord))
				}
			}
		} else {
			n = &nestedIndex{fields: make(fieldIndex)}
		}
		inner := scope{idx: s.idx, nested: n, path: a.Path}
		subAggs, err := inner.evalAggs(a.Aggs, entries)
		if err != nil {
			return nil, err
		}
		return &AggregationResult{DocCount: int64(entries.GetCardinality()), Aggs: subAggs}, nil

	case ReverseNestedAggregation:
		if s.nested == nil {
			return nil, fmt.Errorf("reverse_nested aggregation outside nested scope")
		}
		parents := roaring.New()
		it := docs.Iterator()
		for it.HasNext() {
			parents.Add(s.nested.parents[it.Next()])
		}
		root := s.idx.rootScope()
		subAggs, err := root.evalAggs(a.Aggs, parents)
		if err != nil {
			return nil, err
		}
		return &AggregationResult{DocCount: int64(parents.GetCardinality()), Aggs: subAggs}, nil
	}

	return nil, fmt.Errorf("unsupported aggregation type %T", agg)
}

type termBucket struct {
	key  string
	docs *roaring.Bitmap
}

func (s scope) evalTerms(a TermsAggregation, docs *roaring.Bitmap) (*AggregationResult, error) {
	var include map[string]bool
	if a.Include != nil {
		include = make(map[string]bool, len(a.Include))
		for _, k := range a.Include {
			include[k] = true
		}
	}

	minDocs := uint64(a.MinDocCount)
	if minDocs < 1 {
		minDocs = 1
	}

	var found []termBucket
	for value, bm := range s.values(a.Field) {
		if include != nil && !include[value] {
			continue
		}
		matched := roaring.And(docs, bm)
		if matched.GetCardinality() < minDocs {
			continue
		}
		found = append(found, termBucket{key: value, docs: matched})
	}

	sort.Slice(found, func(i, j int) bool {
		ci, cj := found[i].docs.GetCardinality(), found[j].docs.GetCardinality()
		if ci != cj {
			return ci > cj
		}
		return found[i].key < found[j].key
	})

	size := a.Size
	if size <= 0 {
		size = DefaultTermsSize
	}
	if len(found) > size {
		found = found[:size]
	}

	res := &AggregationResult{DocCount: int64(docs.GetCardinality()), Buckets: make([]Bucket, 0, len(found))}
	for _, b := range found {
		subAggs, err := s.evalAggs(a.Aggs, b.docs)
		if err != nil {
			return nil, err
		}
		res.Buckets = append(res.Buckets, Bucket{Key: b.key, DocCount: int64(b.docs.GetCardinality()), Aggs: subAggs})
	}
	return res, nil
}
