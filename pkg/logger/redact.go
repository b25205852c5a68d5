package logger

import "net/url"

// redactToken masks the access token that WebSocket clients pass in the query string.
func redactToken(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil || !values.Has("token") {
		return rawQuery
	}
	values.Set("token", "***")
	return values.Encode()
}
