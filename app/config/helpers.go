package config

import (
	"time"
)

// GetRefreshInterval returns the refresh interval as time.Duration
func (s *SourceSettings) GetRefreshInterval() time.Duration {
	if s.RefreshInterval <= 0 {
		return 86400 * time.Second // default 24 hours
	}
	return time.Duration(s.RefreshInterval) * time.Second
}

// GetTimeout returns the timeout as time.Duration
func (s *SourceSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 60 * time.Second // default 60 seconds
	}
	return time.Duration(s.Timeout) * time.Second
}
