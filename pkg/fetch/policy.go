package fetch

import (
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
)

// Policy decides how a response is classified as success or failure. Both
// policies apply the same empty-body substitution.
type Policy int

const (
	// PolicyTolerant classifies by the status range [200,299].
	PolicyTolerant Policy = iota
	// PolicyStrict trusts the transport's own success flag.
	PolicyStrict
)

// ParsePolicy maps "tolerant"/"strict" (case-insensitive, empty = tolerant) to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tolerant":
		return PolicyTolerant, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyTolerant, fmt.Errorf("unknown policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "tolerant"
}

func (p Policy) success(resp httpclient.Response) bool {
	if p == PolicyStrict {
		return resp.IsSuccess()
	}
	code := resp.StatusCode()
	return code >= 200 && code <= 299
}
