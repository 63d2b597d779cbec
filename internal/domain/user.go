package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleDeveloper:
		return true
	}
	return false
}

// 订阅等级
const (
	SubscriptionBasic   = "basic"
	SubscriptionSilver  = "silver"
	SubscriptionGold    = "gold"
	SubscriptionDiamond = "diamond"
)

type Subscription struct {
	Type       string    `json:"subscriptionType" bson:"subscriptionType"`
	Date       time.Time `json:"subscriptionDate" bson:"subscriptionDate"`
	Expiration time.Time `json:"subscriptionExpiration" bson:"subscriptionExpiration"`
}

type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Name         string `gorm:"size:64;not null" json:"name" bson:"name"`
	Email        string `gorm:"uniqueIndex;size:191;not null" json:"email" bson:"email"`
	Phone        string `gorm:"size:32" json:"phone,omitempty" bson:"phone,omitempty"`
	Address      string `gorm:"size:255" json:"address,omitempty" bson:"address,omitempty"`
	Avatar       string `gorm:"size:255" json:"avatar" bson:"avatar"`
	PasswordHash string `gorm:"column:password;size:100;not null" json:"-" bson:"password"`
	Role         Role   `gorm:"size:16;not null" json:"role" bson:"role"`
	IsActiveUser bool   `gorm:"not null;index" json:"isActiveUser" bson:"isActiveUser"`

	IsSubscribed           bool                              `gorm:"not null" json:"isSubscribed" bson:"isSubscribed"`
	SubscriptionType       string                            `gorm:"size:16" json:"subscriptionType,omitempty" bson:"subscriptionType,omitempty"`
	SubscriptionDate       *time.Time                        `json:"subscriptionDate,omitempty" bson:"subscriptionDate,omitempty"`
	SubscriptionExpiration *time.Time                        `json:"subscriptionExpiration,omitempty" bson:"subscriptionExpiration,omitempty"`
	SubscriptionHistory    datatypes.JSONSlice[Subscription] `json:"subscriptionHistory" bson:"subscriptionHistory"`

	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `gorm:"size:64;index" json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `json:"-" bson:"passwordResetExpires,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (User) TableName() string { return "users" }

// ChangedPasswordAfter reports whether the password changed after a credential
// issued at iat. Both sides are compared at whole-second precision.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// UserSummary is what a listing shows about its owner.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Avatar: u.Avatar}
}
