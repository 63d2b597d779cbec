package domain

import "easyrent/internal/query"

// UserSchema lists what GET /users may filter, sort and project on.
var UserSchema = query.Schema{
	Fields: map[string]query.Field{
		"id":               {Column: "id", BSON: "_id", Kind: query.String},
		"name":             {Column: "name", BSON: "name", Kind: query.String},
		"email":            {Column: "email", BSON: "email", Kind: query.String},
		"phone":            {Column: "phone", BSON: "phone", Kind: query.String},
		"address":          {Column: "address", BSON: "address", Kind: query.String},
		"avatar":           {Column: "avatar", BSON: "avatar", Kind: query.String},
		"role":             {Column: "role", BSON: "role", Kind: query.String},
		"isActiveUser":     {Column: "is_active_user", BSON: "isActiveUser", Kind: query.Bool},
		"isSubscribed":     {Column: "is_subscribed", BSON: "isSubscribed", Kind: query.Bool},
		"subscriptionType": {Column: "subscription_type", BSON: "subscriptionType", Kind: query.String},
		"subscriptionDate": {Column: "subscription_date", BSON: "subscriptionDate", Kind: query.Time},
		"subscriptionExpiration": {
			Column: "subscription_expiration", BSON: "subscriptionExpiration", Kind: query.Time,
		},
		"subscriptionHistory": {Kind: query.Object},
		"passwordChangedAt":   {Column: "password_changed_at", BSON: "passwordChangedAt", Kind: query.Time},
		"createdAt":           {Column: "created_at", BSON: "createdAt", Kind: query.Time},
		"updatedAt":           {Column: "updated_at", BSON: "updatedAt", Kind: query.Time},
	},
	Hidden:         []string{"password", "passwordResetToken", "passwordResetExpires"},
	DefaultExclude: []string{"updatedAt"},
	DefaultSort:    "-createdAt",
}

// ListingSchema lists what GET /appartment may filter, sort and project on.
// createdAt is accepted as another name for dateUploaded.
var ListingSchema = query.Schema{
	Fields: map[string]query.Field{
		"id":               {Column: "id", BSON: "_id", Kind: query.String},
		"houseName":        {Column: "house_name", BSON: "houseName", Kind: query.String},
		"houseAddress":     {Column: "house_address", BSON: "houseAddress", Kind: query.String},
		"houseType":        {Column: "house_type", BSON: "houseType", Kind: query.String},
		"state":            {Column: "state", BSON: "state", Kind: query.String},
		"lga":              {Column: "lga", BSON: "lga", Kind: query.String},
		"price":            {Column: "price", BSON: "price", Kind: query.Number},
		"minPrice":         {Column: "min_price", BSON: "minPrice", Kind: query.Number},
		"maxPrice":         {Column: "max_price", BSON: "maxPrice", Kind: query.Number},
		"houseImage":       {Column: "house_image", BSON: "houseImage", Kind: query.String},
		"images":           {Kind: query.Object},
		"location":         {Kind: query.Object},
		"owner":            {Kind: query.Object},
		"user":             {Column: "user_id", BSON: "user", Kind: query.String},
		"isRented":         {Column: "is_rented", BSON: "isRented", Kind: query.Bool},
		"isDeleted":        {Column: "is_deleted", BSON: "isDeleted", Kind: query.Bool},
		"isVerified":       {Column: "is_verified", BSON: "isVerified", Kind: query.Bool},
		"subscriptionType": {Column: "subscription_type", BSON: "subscriptionType", Kind: query.String},
		"dateUploaded":     {Column: "date_uploaded", BSON: "dateUploaded", Kind: query.Time},
		"createdAt":        {Column: "date_uploaded", BSON: "dateUploaded", Kind: query.Time, JSON: "dateUploaded"},
		"updatedAt":        {Column: "updated_at", BSON: "updatedAt", Kind: query.Time},
	},
	DefaultExclude: []string{"updatedAt"},
	DefaultSort:    "-dateUploaded",
}
