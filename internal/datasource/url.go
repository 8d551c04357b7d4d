package datasource

import (
	"encoding/base64"
	"net/http"
)

// RequestPlan is the fully-resolved method/url/body/headers for a poll or
// stream request, built per spec.md §4.3 step 4 / §4.4 step 4.
type RequestPlan struct {
	Method  string
	URL     string
	Body    []byte
	Headers http.Header
}

// BuildRequest constructs the request for hitting baseURI+basePathGet (GET,
// base64url user in the path) or baseURI+basePathReport (REPORT, user JSON
// as body), appending ?withReasons=true when useReasons is set.
func BuildRequest(
	baseURI, basePathGet, basePathReport string,
	userJSON []byte,
	useReport bool,
	useReasons bool,
	credential string,
) RequestPlan {
	headers := http.Header{}
	headers.Set("Authorization", credential)

	var plan RequestPlan
	if useReport {
		headers.Set("Content-Type", "application/json")
		plan = RequestPlan{
			Method: "REPORT",
			URL:    baseURI + basePathReport,
			Body:   userJSON,
		}
	} else {
		encoded := base64.RawURLEncoding.EncodeToString(userJSON)
		plan = RequestPlan{
			Method: http.MethodGet,
			URL:    baseURI + basePathGet + "/" + encoded,
		}
	}
	if useReasons {
		sep := "?"
		plan.URL += sep + "withReasons=true"
	}
	plan.Headers = headers
	return plan
}
