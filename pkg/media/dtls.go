package media

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/pion/dtls/v2"
)

// wrapDTLS negotiates a DTLS session over an already-connected ICE
// conn, gated behind Config.EnableDTLS. It generates an ephemeral
// self-signed certificate per session rather than requiring the host
// to provision one, matching the teacher's "works out of the box"
// posture for its SRTP keying helper.
func wrapDTLS(ctx context.Context, conn net.Conn, controlling bool) (net.Conn, error) {
	cert, err := dtls.GenerateSelfSigned()
	if err != nil {
		return nil, err
	}
	config := &dtls.Config{
		Certificates:         []tls.Certificate{cert},
		InsecureSkipVerify:   true,
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
	}
	if controlling {
		return dtls.ClientWithContext(ctx, conn, config)
	}
	return dtls.ServerWithContext(ctx, conn, config)
}
