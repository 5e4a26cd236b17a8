package retry

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"
)

// class is the internal classification used to pick a backoff strategy and
// bump the right metric counter.
type class string

const (
	classRateLimited class = "rate-limited"
	classQuota       class = "quota-exceeded"
	classAuthFailed  class = "auth-failed"
	classNetwork     class = "network"
	classOther       class = "other"
)

// classify inspects err and returns the class it belongs to, plus a
// Retry-After duration in seconds when the upstream provided one (0 if not).
func classify(err error) (class, int) {
	if err == nil {
		return classOther, 0
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			return classAuthFailed, 0
		case 403:
			if isQuotaReason(gerr) {
				return classQuota, 0
			}
			return classAuthFailed, 0
		case 429:
			return classRateLimited, retryAfterSeconds(gerr)
		case 500, 502, 503, 504:
			return classNetwork, retryAfterSeconds(gerr)
		}
		return classOther, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return classNetwork, 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classNetwork, 0
	}

	return classOther, 0
}

// isQuotaReason looks at the structured error reasons Google's APIs attach
// to 403 responses to tell a hard quota rejection apart from a plain
// permission denial.
func isQuotaReason(gerr *googleapi.Error) bool {
	for _, e := range gerr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

// retryAfterSeconds extracts a Retry-After value from the error's response
// headers, when googleapi surfaced one. Returns 0 when absent.
func retryAfterSeconds(gerr *googleapi.Error) int {
	if gerr == nil || gerr.Header == nil {
		return 0
	}
	v := gerr.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		seconds = seconds*10 + int(c-'0')
	}
	return seconds
}
