package wire

import (
	"errors"
	"testing"

	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec(log.NewNoopLogger())
}

func TestCodec_EncodeQuery_DecodeQuery_RoundTrip(t *testing.T) {
	c := testCodec()
	q, err := domain.NewQuestion(0xABCE, "example.com.", domain.RRTypeA, domain.RRClassIN)
	require.NoError(t, err)

	data, err := c.EncodeQuery(q, false)
	require.NoError(t, err)

	msg, err := c.DecodeQuery(data)
	require.NoError(t, err)
	require.Len(t, msg.Questions, 1)
	assert.Equal(t, uint16(0xABCE), msg.Header.ID)
	assert.False(t, msg.Header.RD)
	assert.Equal(t, "example.com.", msg.Questions[0].Name)
	assert.Equal(t, domain.RRTypeA, msg.Questions[0].Type)
	assert.Equal(t, domain.RRClassIN, msg.Questions[0].Class)
}

func TestCodec_DecodeQuery_RejectsMultiQuestion(t *testing.T) {
	c := testCodec()
	q1, _ := domain.NewQuestion(1, "a.com.", domain.RRTypeA, domain.RRClassIN)
	q2, _ := domain.NewQuestion(1, "b.com.", domain.RRTypeA, domain.RRClassIN)
	msg, err := domain.NewMessage(domain.Header{ID: 1}, []domain.Question{q1, q2}, nil, nil, nil)
	require.NoError(t, err)
	data, err := c.EncodeMessage(msg)
	require.NoError(t, err)

	_, err = c.DecodeQuery(data)
	require.ErrorIs(t, err, domain.ErrFormerrDecode)
}

// TestCodec_RoundTrip_AnswerWithCompression exercises spec scenario S1: a
// NOERROR reply with one A answer whose name is compressed against the
// question.
func TestCodec_RoundTrip_AnswerWithCompression(t *testing.T) {
	c := testCodec()
	q, err := domain.NewQuestion(0xABCE, "example.com.", domain.RRTypeA, domain.RRClassIN)
	require.NoError(t, err)
	answer, err := domain.NewResourceRecord("example.com.", domain.RRTypeA, domain.RRClassIN, 300,
		domain.RData{Kind: domain.RDataA, IP: "93.184.216.34"})
	require.NoError(t, err)

	msg, err := domain.NewMessage(domain.Header{ID: 0xABCE, QR: true, RA: true}, []domain.Question{q},
		[]domain.ResourceRecord{answer}, nil, nil)
	require.NoError(t, err)

	data, err := c.EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := c.DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCE), decoded.Header.ID)
	assert.True(t, decoded.HasAnswers())
	assert.Equal(t, "example.com.", decoded.Answers[0].Name)
	assert.Equal(t, "93.184.216.34", decoded.Answers[0].RData.IP)
}

// TestCodec_RoundTrip_ReferralWithGlue exercises spec scenario S5/glue
// extraction: an NS referral plus A glue in the additional section.
func TestCodec_RoundTrip_ReferralWithGlue(t *testing.T) {
	c := testCodec()
	ns, err := domain.NewResourceRecord("com.", domain.RRTypeNS, domain.RRClassIN, 3600,
		domain.RData{Kind: domain.RDataName, Name: "a.gtld-servers.net."})
	require.NoError(t, err)
	glue, err := domain.NewResourceRecord("a.gtld-servers.net.", domain.RRTypeA, domain.RRClassIN, 3600,
		domain.RData{Kind: domain.RDataA, IP: "192.5.6.30"})
	require.NoError(t, err)

	msg, err := domain.NewMessage(domain.Header{ID: 1}, nil, nil,
		[]domain.ResourceRecord{ns}, []domain.ResourceRecord{glue})
	require.NoError(t, err)

	data, err := c.EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := c.DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.5.6.30"}, decoded.GlueAddresses())
}

// TestCodec_DecodeMessage_PointerCycleAtHeaderOffset is the property test
// named in spec §8 invariant 4: a crafted message where the question name
// at offset 12 is a pointer back to offset 12 must FORMERR_DECODE rather
// than loop forever.
func TestCodec_DecodeMessage_PointerCycleAtHeaderOffset(t *testing.T) {
	c := testCodec()
	data := make([]byte, 14)
	data[4] = 0x00
	data[5] = 0x01 // qdcount = 1
	data[12] = 0xC0
	data[13] = 0x0C // pointer to offset 12 (itself)

	_, err := c.DecodeMessage(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFormerrDecode))
}

func TestCodec_DecodeMessage_TruncatedHeaderFails(t *testing.T) {
	c := testCodec()
	_, err := c.DecodeMessage([]byte{0, 1, 2})
	require.ErrorIs(t, err, domain.ErrFormerrDecode)
}

func TestEncodePTRQuestion(t *testing.T) {
	name, err := EncodePTRQuestion("93.184.216.34")
	require.NoError(t, err)
	assert.Equal(t, "34.216.184.93.in-addr.arpa.", name)
}

func TestEncodePTRQuestion_RejectsNonIPv4(t *testing.T) {
	_, err := EncodePTRQuestion("not-an-ip")
	require.ErrorIs(t, err, domain.ErrFormerrEncode)
}

func TestDecodeName_AcceptsUppercaseArpaSuffix(t *testing.T) {
	// The source emits uppercase IN-ADDR.ARPA; decode must accept it.
	var buf []byte
	for _, label := range []string{"34", "216", "184", "93", "IN-ADDR", "ARPA"} {
		buf = append(buf, byte(len(label)))
		buf = append(buf, []byte(label)...)
	}
	buf = append(buf, 0)

	got, _, err := decodeName(buf, 0, map[int]struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "34.216.184.93.IN-ADDR.ARPA.", got)
}
