package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/haloarc/iterdns/internal/dns/common/clock"
	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/domain"
	"github.com/haloarc/iterdns/internal/dns/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) Query(serverIP string, payload []byte, timeout time.Duration) ([]byte, error) {
	args := m.Called(serverIP, payload, timeout)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func encodeAnswer(t *testing.T, codec *wire.Codec, id uint16, ip string) []byte {
	t.Helper()
	q, err := domain.NewQuestion(id, "example.com.", domain.RRTypeA, domain.RRClassIN)
	require.NoError(t, err)
	rr, err := domain.NewResourceRecord("example.com.", domain.RRTypeA, domain.RRClassIN, 300,
		domain.RData{Kind: domain.RDataA, IP: ip})
	require.NoError(t, err)
	msg, err := domain.NewMessage(domain.Header{ID: id, QR: true}, []domain.Question{q}, []domain.ResourceRecord{rr}, nil, nil)
	require.NoError(t, err)
	data, err := codec.EncodeMessage(msg)
	require.NoError(t, err)
	return data
}

func encodeReferral(t *testing.T, codec *wire.Codec, id uint16, glue ...string) []byte {
	t.Helper()
	var additionals []domain.ResourceRecord
	for i, ip := range glue {
		rr, err := domain.NewResourceRecord(
			"ns.example.net.", domain.RRTypeA, domain.RRClassIN, 3600,
			domain.RData{Kind: domain.RDataA, IP: ip})
		require.NoError(t, err)
		_ = i
		additionals = append(additionals, rr)
	}
	msg, err := domain.NewMessage(domain.Header{ID: id}, nil, nil, nil, additionals)
	require.NoError(t, err)
	data, err := codec.EncodeMessage(msg)
	require.NoError(t, err)
	return data
}

func encodeRCode(t *testing.T, codec *wire.Codec, id uint16, rcode domain.RCode) []byte {
	t.Helper()
	msg := domain.NewErrorMessage(id, rcode)
	data, err := codec.EncodeMessage(msg)
	require.NoError(t, err)
	return data
}

func clientQuery(t *testing.T, codec *wire.Codec) []byte {
	t.Helper()
	q, err := domain.NewQuestion(0xABCE, "example.com.", domain.RRTypeA, domain.RRClassIN)
	require.NoError(t, err)
	data, err := codec.EncodeQuery(q, false)
	require.NoError(t, err)
	return data
}

// TestHandleClientQuery_ImmediateAnswer exercises spec scenario S1: the
// first root answers directly.
func TestHandleClientQuery_ImmediateAnswer(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	answer := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(answer, nil)

	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, answer, got)
	up.AssertExpectations(t)
}

// TestHandleClientQuery_FollowsReferral exercises a root referral chased
// to a delegate that then answers.
func TestHandleClientQuery_FollowsReferral(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	referral := encodeReferral(t, codec, 0xABCE, "192.5.6.30")
	answer := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(referral, nil).Once()
	up.On("Query", "192.5.6.30", mock.Anything, mock.Anything).Return(answer, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, answer, got)
	up.AssertExpectations(t)
}

// TestHandleClientQuery_SERVFAILFallback exercises spec scenario S3:
// first root SERVFAILs, second root answers.
func TestHandleClientQuery_SERVFAILFallback(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	servfail := encodeRCode(t, codec, 0xABCE, 2)
	answer := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(servfail, nil).Once()
	up.On("Query", "199.9.14.201", mock.Anything, mock.Anything).Return(answer, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4", "199.9.14.201"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, answer, got)
	up.AssertExpectations(t)
}

func TestHandleClientQuery_NXDOMAINForwardedImmediately(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	nxdomain := encodeRCode(t, codec, 0xABCE, 3)
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(nxdomain, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, nxdomain, got)
	up.AssertExpectations(t)
}

// TestHandleClientQuery_TimeoutExhaustsAllRoots exercises the timeout
// sentinel path when every root times out and there are no candidates.
func TestHandleClientQuery_TimeoutExhaustsAllRoots(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(nil, errors.New("read deadline exceeded")).Once()
	up.On("Query", "199.9.14.201", mock.Anything, mock.Anything).Return(nil, errors.New("read deadline exceeded")).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4", "199.9.14.201"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, []byte("timeout"), got)
	up.AssertExpectations(t)
}

func TestHandleClientQuery_EmptyGlueIsDeadEnd(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	emptyReferral := encodeRCode(t, codec, 0xABCE, 0) // NOERROR, no answers, no additionals
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(emptyReferral, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, emptyReferral, got)
	up.AssertExpectations(t)
}

// TestHandleClientQuery_UsesInjectedClock verifies the resolver reads
// its timestamps through the injected clock rather than time.Now,
// keeping a resolved query's logged duration deterministic in tests.
func TestHandleClientQuery_UsesInjectedClock(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	answer := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(answer, nil)

	mc := &clock.MockClock{CurrentTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second, Clock: mc})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, answer, got)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), mc.CurrentTime, "mock clock never advances on its own")
}

// TestHandleClientQuery_NOTIMPTreatedLikeServfail exercises spec.md §7:
// NOTIMP is treated like SERVFAIL, so a referral-shaped NOTIMP reply
// with glue must still be bypassed in favor of the next candidate
// rather than chased as a normal referral.
func TestHandleClientQuery_NOTIMPTreatedLikeServfail(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}
	glue, err := domain.NewResourceRecord("ns.example.net.", domain.RRTypeA, domain.RRClassIN, 3600,
		domain.RData{Kind: domain.RDataA, IP: "192.5.6.30"})
	require.NoError(t, err)
	notimpMsg, err := domain.NewMessage(domain.Header{ID: 0xABCE, QR: true, RCode: domain.RCodeNotImp},
		nil, nil, nil, []domain.ResourceRecord{glue})
	require.NoError(t, err)
	notimp, err := codec.EncodeMessage(notimpMsg)
	require.NoError(t, err)
	answer := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(notimp, nil).Once()
	up.On("Query", "199.9.14.201", mock.Anything, mock.Anything).Return(answer, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4", "199.9.14.201"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, answer, got)
	up.AssertExpectations(t)
}

// TestHandleClientQuery_ForwardsAnswerDespiteMalformedTrailer exercises
// spec.md §4.3 step 2: a reply whose header reports ancount > 0 is
// forwarded verbatim even when the full message fails to decode because
// the answer record's own RDATA is truncated.
func TestHandleClientQuery_ForwardsAnswerDespiteMalformedTrailer(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	up := &mockUpstream{}

	full := encodeAnswer(t, codec, 0xABCE, "93.184.216.34")
	truncated := full[:len(full)-2] // header (ancount=1 intact) but the answer RR's RDATA is cut short

	_, decodeErr := codec.DecodeMessage(truncated)
	require.Error(t, decodeErr, "sanity check: the truncated reply must actually fail full decode")

	up.On("Query", "198.41.0.4", mock.Anything, mock.Anything).Return(truncated, nil).Once()

	r, err := New(Options{Roots: []string{"198.41.0.4"}, Upstream: up, Codec: codec, Logger: log.NewNoopLogger(), Timeout: time.Second})
	require.NoError(t, err)

	got := r.HandleClientQuery("10.0.0.1:5353", clientQuery(t, codec))
	require.Equal(t, truncated, got)
	up.AssertExpectations(t)
}

func TestNew_RequiresAtLeastOneRoot(t *testing.T) {
	_, err := New(Options{Roots: nil})
	require.Error(t, err)
}
