package model

import "time"

// MembershipSequenceModel 按前缀和年份分配的会员编号计数器
type MembershipSequenceModel struct {
	Prefix    string    `gorm:"primaryKey;type:varchar(16)"`
	Year      int       `gorm:"primaryKey"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (MembershipSequenceModel) TableName() string {
	return "membership_sequences"
}
