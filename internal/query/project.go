package query

import (
	"encoding/json"
	"fmt"
)

// Project serializes v and trims it to the query's projection. Hidden keys
// are always removed and "id" always survives an include list.
func Project(q *Query, v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	s := q.schema
	for _, h := range s.Hidden {
		delete(doc, s.jsonKey(h))
	}

	if len(q.Projection.Include) > 0 {
		keep := map[string]struct{}{"id": {}}
		for _, name := range q.Projection.Include {
			keep[s.jsonKey(name)] = struct{}{}
		}
		for k := range doc {
			if _, ok := keep[k]; !ok {
				delete(doc, k)
			}
		}
		return doc, nil
	}
	for _, name := range q.Projection.Exclude {
		if k := s.jsonKey(name); k != "id" {
			delete(doc, k)
		}
	}
	return doc, nil
}

// ProjectAll applies Project to every element of items.
func ProjectAll[T any](q *Query, items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		doc, err := Project(q, items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
