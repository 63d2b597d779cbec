package query

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyFilter adds the query's conditions and sort order to db.
// Column names come from the schema only, never from the request.
func ApplyFilter(q *Query) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range q.Conditions {
			col := clause.Column{Name: q.schema.Fields[c.Field].Column}
			var expr clause.Expression
			switch c.Op {
			case OpGte:
				expr = clause.Gte{Column: col, Value: c.Value}
			case OpLte:
				expr = clause.Lte{Column: col, Value: c.Value}
			case OpGt:
				expr = clause.Gt{Column: col, Value: c.Value}
			case OpLt:
				expr = clause.Lt{Column: col, Value: c.Value}
			default:
				expr = clause.Eq{Column: col, Value: c.Value}
			}
			db = db.Where(expr)
		}
		return db
	}
}

// ApplyPage orders and windows db. Use it on the list query, not the count.
func ApplyPage(q *Query) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		byID := false
		for _, s := range q.Sort {
			col := q.schema.Fields[s.Field].Column
			if col == "id" {
				byID = true
			}
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc})
		}
		// 保证分页稳定
		if !byID {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
		}
		return db.Offset(q.Skip).Limit(q.Limit)
	}
}
