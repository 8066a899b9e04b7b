package agent

import (
	"fmt"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/embedded_ua/pkg/digest"
)

// authState holds one nc counter for its owner (a dialog, or the
// agent's registration); every authorize call increments it, whatever
// the realm or nonce, rather than resetting it per request.
// retried caps digest auth at spec.md §4.3/§7's "at most one retry
// per request" — a second 401/407 for the same logical request is
// AuthFailed, not another retry.
type authState struct {
	nc      uint32
	retried bool
}

// challengeFromResponse extracts a WWW-Authenticate or Proxy-Authenticate
// header from a 401/407 response, whichever the status implies.
func challengeFromResponse(res *sip.Response) (digest.Challenge, bool) {
	var hdrName string
	switch res.StatusCode {
	case 401:
		hdrName = "WWW-Authenticate"
	case 407:
		hdrName = "Proxy-Authenticate"
	default:
		return digest.Challenge{}, false
	}
	h := res.GetHeader(hdrName)
	if h == nil {
		return digest.Challenge{}, false
	}
	ch, err := digest.ParseChallenge(h.Value())
	if err != nil {
		return digest.Challenge{}, false
	}
	return ch, true
}

// authorize recomputes the request's digest credentials for a retry
// after a 401/407, appending Authorization (or Proxy-Authorization)
// and bumping st's nc counter. The caller must bump CSeq and
// regenerate the branch itself — a retried request is a brand new
// transaction per RFC 3261 §22.2.
func authorize(req *sip.Request, ch digest.Challenge, challengeStatus int, cfg Config, st *authState) error {
	st.nc++
	method := string(req.Method)
	uri := req.Recipient.String()
	resp, err := digest.Compute(digest.Md5Hasher{}, ch, digest.Credentials{Username: cfg.Username, Password: cfg.Password}, method, uri, st.nc, "")
	if err != nil {
		return fmt.Errorf("agent: digest compute: %w", err)
	}
	hdrName := "Authorization"
	if challengeStatus == 407 {
		hdrName = "Proxy-Authorization"
	}
	req.AppendHeader(sip.NewHeader(hdrName, resp.Header()))
	return nil
}
