package agent

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// magicCookie is the RFC 3261 §8.1.1.7 branch prefix that marks a
// branch ID as belonging to the RFC 3261 transaction matching rules
// (versus the older RFC 2543 behavior).
const magicCookie = "z9hG4bK"

func randomToken(nbytes int) string {
	buf := make([]byte, nbytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func newBranch() string { return magicCookie + randomToken(8) }
func newTag() string    { return randomToken(8) }
func newCallID() string { return randomToken(16) }

// localURI builds this agent's own SIP URI from its account config.
func localURI(cfg Config) sip.Uri {
	return sip.Uri{Scheme: "sip", User: cfg.Username, Host: cfg.Domain}
}

func contactURI(cfg Config, localAddr string, localPort int) sip.Uri {
	return sip.Uri{Scheme: "sip", User: cfg.Username, Host: localAddr, Port: localPort}
}

// registrarURI builds the Request-URI for REGISTER/out-of-dialog
// requests sent to the configured registrar.
func registrarURI(cfg Config) sip.Uri {
	return sip.Uri{Scheme: "sip", Host: cfg.Registrar, Port: cfg.RegistrarPort}
}

// buildVia constructs the top Via header RFC 3581 needs rport in:
// branch is unique per transaction, rport with no value requests the
// server report the source port it actually saw us from.
func buildVia(localAddr string, localPort int, branch string) *sip.ViaHeader {
	params := sip.NewParams()
	params.Add("branch", branch)
	params.Add("rport", "")
	return &sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            localAddr,
		Port:            localPort,
		Params:          params,
	}
}

func addCommonHeaders(req *sip.Request, cfg Config, localAddr string, localPort int, callID, fromTag, branch string, cseq uint32, method sip.RequestMethod) {
	req.AppendHeader(buildVia(localAddr, localPort, branch))
	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)

	fromParams := sip.NewParams()
	fromParams.Add("tag", fromTag)
	req.AppendHeader(&sip.FromHeader{
		DisplayName: cfg.DisplayName,
		Address:     localURI(cfg),
		Params:      fromParams,
	})

	cid := sip.CallIDHeader(callID)
	req.AppendHeader(&cid)

	req.AppendHeader(&sip.CSeqHeader{SeqNo: cseq, MethodName: method})

	contact := &sip.ContactHeader{Address: contactURI(cfg, localAddr, localPort)}
	req.AppendHeader(contact)

	ua := sip.NewHeader("User-Agent", "embedded-ua/1.0")
	req.AppendHeader(ua)
}

func toError(err error, context string) error {
	return fmt.Errorf("agent: %s: %w", context, err)
}
