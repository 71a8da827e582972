package models

import "gorm.io/datatypes"

type Account struct {
	BaseModel

	Username      string            `json:"username" gorm:"uniqueIndex"`
	ProfileColor  string            `json:"profile_color"`
	Avatar        string            `json:"avatar"`
	ChannelArn    string            `json:"channel_arn"`
	ChannelAssets datatypes.JSONMap `json:"channel_assets"`

	Stages []Stage `json:"stages"`
}
