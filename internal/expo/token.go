package expo

import (
	"regexp"
	"strings"
)

var deviceIDPattern = regexp.MustCompile(`(?i)^[a-z\d]{8}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{12}$`)

// IsPushToken reports whether token has a shape Expo accepts as a recipient.
func IsPushToken(token string) bool {
	if (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]") {
		return true
	}
	return deviceIDPattern.MatchString(token)
}
