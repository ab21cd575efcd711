package mudrex

import "net/http"

// authTransport injects the API secret and user agent on every request.
type authTransport struct {
	secret string
	agent  string
	base   http.RoundTripper
}

func (t authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.secret != "" {
		req.Header.Set("X-Api-Secret", t.secret)
	}
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}
