package models

import "time"

// NoticeNotification is a notice created since the console was last read.
type NoticeNotification struct {
	RecordID  string    `json:"recordId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSummary is the unread notice counter shown in the console header.
type NotificationSummary struct {
	Unread int                  `json:"unread"`
	Recent []NoticeNotification `json:"recent"`
}
