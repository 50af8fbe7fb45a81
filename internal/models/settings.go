package models

import (
	"net"
	"strings"
)

// VideoFeedPort is where the OBS relay serves its image stream when the address names no port.
const VideoFeedPort = "5001"

// Settings is the per-user settings row.
type Settings struct {
	OwnerID   string `json:"uid"`
	OBSServer string `json:"obs_server"`
}

// DefaultSettings is the row inserted the first time a user's settings are loaded.
func DefaultSettings(uid, address string) Settings {
	return Settings{OwnerID: uid, OBSServer: address}
}

// FeedURL builds the live video image URL for the configured OBS server.
// An empty address falls back to the given default feed.
func (s Settings) FeedURL(fallback string) string {
	addr := strings.TrimSpace(s.OBSServer)
	if addr == "" {
		return fallback
	}
	if strings.Contains(addr, "://") {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, VideoFeedPort)
	}
	return "http://" + addr + "/video_feed"
}
