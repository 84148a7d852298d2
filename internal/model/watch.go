package model

import "time"

// WatchedChannel is a user's subscription to monitor one chat channel for
// event-bearing messages. A user cannot watch the same channel twice — the
// store enforces UNIQUE(channel_id, user_id).
type WatchedChannel struct {
	ID          string    `json:"id"          db:"id"`
	CommunityID string    `json:"communityId" db:"community_id"` // server/community the channel belongs to
	ChannelID   string    `json:"channelId"   db:"channel_id"`
	ChannelName string    `json:"channelName" db:"channel_name"`
	UserID      string    `json:"userId"      db:"user_id"` // internal user ID, never the platform ID
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}
