package reqflow

import (
	"strconv"
	"strings"
	"time"
)

// CacheDirectives represents parsed Cache-Control directives.
type CacheDirectives struct {
	NoStore bool
	NoCache bool
	MaxAge  *time.Duration
	SMaxAge *time.Duration
	Private bool
}

// parseCacheControl parses Cache-Control header into structured directives.
func parseCacheControl(header string) *CacheDirectives {
	directives := &CacheDirectives{}
	if header == "" {
		return directives
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if key, value, ok := strings.Cut(part, "="); ok {
			key = strings.ToLower(strings.TrimSpace(key))
			value = strings.Trim(strings.TrimSpace(value), "\"")
			seconds, err := strconv.Atoi(value)
			if err != nil || seconds < 0 {
				continue
			}
			d := time.Duration(seconds) * time.Second
			switch key {
			case "max-age":
				directives.MaxAge = &d
			case "s-maxage":
				directives.SMaxAge = &d
			}
			continue
		}

		switch strings.ToLower(part) {
		case "no-store":
			directives.NoStore = true
		case "no-cache":
			directives.NoCache = true
		case "private":
			directives.Private = true
		}
	}

	return directives
}

// resultTTL decides how long a settled result may be kept. Error results and
// responses without max-age use defaultTTL. s-maxage is ignored. ok is false
// when the response forbids storing it.
func resultTTL(result *CachedResult, defaultTTL time.Duration) (ttl time.Duration, ok bool) {
	if result == nil {
		return 0, false
	}
	if result.Response == nil || result.Response.Header == nil {
		return defaultTTL, defaultTTL > 0
	}

	d := parseCacheControl(result.Response.Header.Get("Cache-Control"))
	switch {
	case d.NoStore:
		return 0, false
	case d.MaxAge != nil:
		ttl = *d.MaxAge
	default:
		ttl = defaultTTL
	}
	return ttl, ttl > 0
}
