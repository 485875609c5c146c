package media

import (
	"net/url"
	"os"
	"strings"

	"github.com/datallboy/resample/internal/domain"
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "music.youtube.com", "youtube-nocookie.com"}

// DetectInputType classifies a user supplied locator.
func DetectInputType(input string) domain.InputType {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.InputUnknown
	}

	if strings.HasPrefix(strings.ToLower(input), "spotify:") {
		return domain.InputSpotify
	}

	if host := hostOf(input); host != "" {
		for _, h := range youtubeHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return domain.InputYouTube
			}
		}
		if host == "open.spotify.com" || host == "spotify.link" {
			return domain.InputSpotify
		}
	}

	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		return domain.InputLocalFile
	}

	return domain.InputUnknown
}

func hostOf(input string) string {
	lower := strings.ToLower(input)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		// Bare "youtu.be/xyz" style input
		if !strings.Contains(lower, "/") || strings.HasPrefix(lower, "/") || strings.HasPrefix(lower, ".") {
			return ""
		}
		lower = "https://" + lower
	}

	u, err := url.Parse(lower)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
