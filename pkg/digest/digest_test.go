package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_RoundTripLaw(t *testing.T) {
	ch := Challenge{Realm: "ex", Nonce: "abc", Qop: "auth"}
	cred := Credentials{Username: "alice", Password: "secret"}

	resp, err := Compute(Md5Hasher{}, ch, cred, "REGISTER", "sip:example.com", 1, "")
	require.NoError(t, err)

	h := Md5Hasher{}
	ha1 := hexOf(h, cred.Username, ch.Realm, cred.Password)
	ha2 := hexOf(h, "REGISTER", "sip:example.com")
	want := hexOf(h, ha1, ch.Nonce, resp.NC, resp.Cnonce, resp.Qop, ha2)

	assert.Equal(t, want, resp.Response)
	assert.Equal(t, "00000001", resp.NC)
	assert.NotEmpty(t, resp.Cnonce)
}

func TestCompute_NoQop(t *testing.T) {
	ch := Challenge{Realm: "ex", Nonce: "n1"}
	cred := Credentials{Username: "bob", Password: "pw"}

	resp, err := Compute(Md5Hasher{}, ch, cred, "INVITE", "sip:bob@example.com", 0, "")
	require.NoError(t, err)
	assert.Empty(t, resp.Qop)
	assert.Empty(t, resp.NC)

	h := Md5Hasher{}
	ha1 := hexOf(h, cred.Username, ch.Realm, cred.Password)
	ha2 := hexOf(h, "INVITE", "sip:bob@example.com")
	want := hexOf(h, ha1, ch.Nonce, ha2)
	assert.Equal(t, want, resp.Response)
}

func TestParseChallenge(t *testing.T) {
	ch, err := ParseChallenge(`Digest realm="ex", nonce="abc", qop="auth", opaque="xyz"`)
	require.NoError(t, err)
	assert.Equal(t, "ex", ch.Realm)
	assert.Equal(t, "abc", ch.Nonce)
	assert.Equal(t, "auth", ch.Qop)
}

func TestParseChallenge_Malformed(t *testing.T) {
	_, err := ParseChallenge(`Digest qop="auth"`)
	assert.Error(t, err)
}

func TestHeader_RendersQop(t *testing.T) {
	resp := Response{
		Username: "alice", Realm: "ex", Nonce: "abc", URI: "sip:example.com",
		Response: "deadbeef", Algorithm: "MD5", Qop: "auth", NC: "00000001", Cnonce: "cn",
	}
	out := resp.Header()
	assert.Contains(t, out, `username="alice"`)
	assert.Contains(t, out, `qop=auth`)
	assert.Contains(t, out, `nc=00000001`)
}
