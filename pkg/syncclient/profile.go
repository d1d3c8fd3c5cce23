// Package syncclient implements the client half of the timetable sync layer:
// a connectivity-aware request router with cache fallback, a socket listener
// for push snapshots, and a per-screen reconciler that merges both sources.
package syncclient

import (
	"errors"
	"strings"
	"sync"
)

// Profile identifies one backend a device is enrolled with. Created at
// login or QR onboarding, its tokens are rotated on refresh, and it is
// destroyed on logout.
type Profile struct {
	mu sync.RWMutex

	ID           string `json:"id"`
	SchoolID     string `json:"school_id"`
	BaseURL      string `json:"base_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Validate checks the fields the router depends on.
func (p *Profile) Validate() error {
	if p.ID == "" || p.SchoolID == "" {
		return errors.New("profile requires an id and a school id")
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return errors.New("profile base url must be absolute")
	}
	return nil
}

// UpdateTokens swaps both tokens after a refresh.
func (p *Profile) UpdateTokens(access, refresh string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AccessToken = access
	p.RefreshToken = refresh
}

// Bearer returns the current access token.
func (p *Profile) Bearer() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.AccessToken
}
