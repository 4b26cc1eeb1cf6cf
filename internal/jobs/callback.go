package jobs

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

// CallbackPath is where providers deliver asynchronous outcomes.
const CallbackPath = "/v1/callbacks/fal"

// CallbackSigner builds and verifies job-scoped callback URLs. The signature
// is HMAC-SHA256 over the job id, so a URL can only report on its own job.
type CallbackSigner struct {
	secret  []byte
	baseURL string
}

// NewCallbackSigner returns a signer for URLs below baseURL.
func NewCallbackSigner(secret, baseURL string) *CallbackSigner {
	return &CallbackSigner{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// Sign returns the hex signature of jobID.
func (c *CallbackSigner) Sign(jobID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(jobID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig was produced by Sign for jobID.
func (c *CallbackSigner) Verify(jobID, sig string) bool {
	if jobID == "" || sig == "" || len(c.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Sign(jobID)), []byte(strings.ToLower(sig))) == 1
}

// URL returns the callback address for jobID.
func (c *CallbackSigner) URL(jobID string) string {
	q := url.Values{}
	q.Set("job_id", jobID)
	q.Set("sig", c.Sign(jobID))
	return c.baseURL + CallbackPath + "?" + q.Encode()
}
