package middleware

import (
	"net/http"
	"strings"
)

// DecodedPath makes chi route on the percent-decoded path, so /h%6Fme matches
// /home. chi prefers URL.RawPath whenever it is set; that is kept only when the
// raw path carries an encoded slash, which decoding would turn into a segment
// separator.
func DecodedPath() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawPath != "" && !strings.Contains(strings.ToUpper(r.URL.RawPath), "%2F") {
				r = r.Clone(r.Context())
				r.URL.RawPath = ""
			}
			next.ServeHTTP(w, r)
		})
	}
}
