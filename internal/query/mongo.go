package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoFilter renders the conditions as a bson filter document.
func MongoFilter(q *Query) bson.M {
	out := bson.M{}
	for _, c := range q.Conditions {
		key := q.schema.Fields[c.Field].BSON
		if c.Op == OpEq {
			out[key] = c.Value
			continue
		}
		ops, ok := out[key].(bson.M)
		if !ok {
			ops = bson.M{}
			out[key] = ops
		}
		ops[string(c.Op)] = c.Value
	}
	return out
}

// MongoFind renders sort and the skip/limit window as find options.
func MongoFind(q *Query) *options.FindOptions {
	sort := bson.D{}
	byID := false
	for _, s := range q.Sort {
		key := q.schema.Fields[s.Field].BSON
		if key == "_id" {
			byID = true
		}
		dir := 1
		if s.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: key, Value: dir})
	}
	if !byID {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}
	return options.Find().
		SetSort(sort).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
}
