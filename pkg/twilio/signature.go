package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
)

// ValidateSignature checks the X-Twilio-Signature header on an inbound
// webhook. Twilio signs the full request URL followed by every POST parameter
// concatenated in sorted key order, using HMAC-SHA1 with the auth token.
func (c *Client) ValidateSignature(requestURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}

	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	mac := hmac.New(sha1.New, []byte(c.authToken))
	mac.Write([]byte(requestURL + sortedFormConcat(params)))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignatureHeader is the header carrying the inbound webhook signature.
const SignatureHeader = "X-Twilio-Signature"

// RequestSignature extracts the signature header from an inbound request.
func RequestSignature(r *http.Request) string {
	return r.Header.Get(SignatureHeader)
}
