package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ValidateSignature reports whether signature matches a Twilio request to
// fullURL (query string included) with the given POST parameters. Twilio
// callbacks carry one value per parameter.
func ValidateSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	flat := make(map[string]string, len(params))
	for k := range params {
		flat[k] = params.Get(k)
	}
	v := client.NewRequestValidator(authToken)
	return v.Validate(fullURL, flat, signature)
}
