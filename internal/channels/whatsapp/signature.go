package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateSignature checks that a webhook request really came from
// Twilio: the X-Twilio-Signature header must match an HMAC-SHA1 over
// the request URL plus the sorted form parameters.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
