package models

import "cbs/src/types"

type Court struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	Name        string  `json:"name,omitempty"`
	Slug        string  `gorm:"uniqueIndex" json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	OpenTime    string  `gorm:"default:'07:00'" json:"open_time,omitempty"`
	CloseTime   string  `gorm:"default:'22:00'" json:"close_time,omitempty"`
	HourlyRate  float64 `json:"hourly_rate"`
	Status      string  `gorm:"default:'active'" json:"status,omitempty"`

	types.Timestamps
}
