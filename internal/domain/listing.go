package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Listing is a rental property ("appartment" on the wire).
type Listing struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	HouseName        string                      `gorm:"size:128;not null" json:"houseName" bson:"houseName"`
	HouseAddress     string                      `gorm:"size:255" json:"houseAddress,omitempty" bson:"houseAddress,omitempty"`
	HouseType        string                      `gorm:"size:64" json:"houseType,omitempty" bson:"houseType,omitempty"`
	State            string                      `gorm:"size:64;not null;index" json:"state" bson:"state"`
	LGA              string                      `gorm:"column:lga;size:64;not null" json:"lga" bson:"lga"`
	Price            float64                     `gorm:"not null;index" json:"price" bson:"price"`
	MinPrice         *float64                    `json:"minPrice,omitempty" bson:"minPrice,omitempty"`
	MaxPrice         *float64                    `json:"maxPrice,omitempty" bson:"maxPrice,omitempty"`
	HouseImage       string                      `gorm:"size:512" json:"houseImage,omitempty" bson:"houseImage,omitempty"`
	Images           datatypes.JSONSlice[string] `json:"images" bson:"images"`
	Location         Location                    `gorm:"embedded;embeddedPrefix:location_" json:"location" bson:"location"`
	UserID           string                      `gorm:"column:user_id;size:36;not null;index" json:"user" bson:"user"`
	IsRented         bool                        `gorm:"not null" json:"isRented" bson:"isRented"`
	IsDeleted        bool                        `gorm:"not null;index" json:"isDeleted" bson:"isDeleted"`
	IsVerified       bool                        `gorm:"not null" json:"isVerified" bson:"isVerified"`
	SubscriptionType string                      `gorm:"size:16" json:"subscriptionType,omitempty" bson:"subscriptionType,omitempty"`
	DateUploaded     time.Time                   `gorm:"not null;index" json:"dateUploaded" bson:"dateUploaded"`
	UpdatedAt        time.Time                   `json:"updatedAt" bson:"updatedAt"`

	// 详情接口填充，不落库
	Owner *UserSummary `gorm:"-" json:"owner,omitempty" bson:"-"`
}

func (Listing) TableName() string { return "listings" }

// OwnedBy reports whether uid may modify the listing as its owner.
func (l *Listing) OwnedBy(uid string) bool { return l.UserID == uid }
