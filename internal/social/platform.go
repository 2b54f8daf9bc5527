package social

import (
	"fmt"
	"strings"
)

// Platform identifies one of the supported social networks.
type Platform string

const (
	Twitter   Platform = "twitter"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	LinkedIn  Platform = "linkedin"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
)

// Platforms returns the fixed set of supported platforms in display order.
func Platforms() []Platform {
	return []Platform{Twitter, Facebook, Instagram, LinkedIn, TikTok, YouTube}
}

func (p Platform) String() string { return string(p) }

func (p Platform) Valid() bool {
	for _, known := range Platforms() {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform normalizes a user supplied platform name. "x" is accepted as
// an alias of twitter.
func ParsePlatform(name string) (Platform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "x" {
		return Twitter, nil
	}
	p := Platform(name)
	if !p.Valid() {
		return "", fmt.Errorf("unsupported platform %q", name)
	}
	return p, nil
}
