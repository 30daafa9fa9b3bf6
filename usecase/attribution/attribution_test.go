package attribution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/referral"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/repository/memory"
)

type recordingBuffer struct {
	mu     sync.Mutex
	clicks []*domain.AffiliateClick
	err    error
}

func (b *recordingBuffer) BufferClick(_ context.Context, click *domain.AffiliateClick) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.clicks = append(b.clicks, click)
	return nil
}

type fixture struct {
	db     *memory.DB
	reg    *prometheus.Registry
	codec  *referral.Codec
	buffer *recordingBuffer
	uc     *UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	codec := referral.NewCodec("test-secret", "", 0)
	buf := &recordingBuffer{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "storefront-test")
	return &fixture{
		db:     db,
		reg:    reg,
		codec:  codec,
		buffer: buf,
		uc:     New(db.Store().Affiliates(), db, codec, buf, m, nil),
	}
}

func (f *fixture) enroll(t *testing.T, userID, code string) *domain.Affiliate {
	t.Helper()
	a := &domain.Affiliate{UserID: userID, Code: code, CommissionRate: domain.DefaultCommissionRate}
	require.NoError(t, f.db.Store().Affiliates().Create(context.Background(), a))
	return a
}

func (f *fixture) affiliate(t *testing.T, id string) *domain.Affiliate {
	t.Helper()
	a, err := f.db.Store().Affiliates().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestResolveClickRecordsClickAndCounter(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")
	productID := "product-1"

	res, err := f.uc.ResolveClick(context.Background(), " abc123 ", &productID, domain.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, a.ID, res.Affiliate.ID)
	assert.False(t, res.Buffered)

	clicks := f.db.Clicks()
	require.Len(t, clicks, 1)
	assert.Equal(t, a.ID, clicks[0].AffiliateID)
	assert.Equal(t, "10.0.0.1", clicks[0].IPAddress)
	require.NotNil(t, clicks[0].ProductID)
	assert.Equal(t, productID, *clicks[0].ProductID)

	assert.EqualValues(t, 1, f.affiliate(t, a.ID).TotalClicks)

	series, err := testutil.GatherAndCount(f.reg, "storefront_affiliate_clicks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestResolveClickIgnoresUnknownAndMalformedCodes(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")

	for _, code := range []string{"", "DEF456", "not-a-code", "ABC12"} {
		res, err := f.uc.ResolveClick(context.Background(), code, nil, domain.RequestMeta{})
		require.NoError(t, err, code)
		assert.Nil(t, res, code)
	}

	assert.Empty(t, f.db.Clicks())
	assert.Zero(t, f.affiliate(t, a.ID).TotalClicks)
}

func TestResolveClickIgnoresInactiveAffiliate(t *testing.T) {
	f := newFixture(t)
	a := &domain.Affiliate{UserID: "user-1", Code: "ABC123", Status: domain.AffiliateStatusInactive}
	require.NoError(t, f.db.Store().Affiliates().Create(context.Background(), a))

	res, err := f.uc.ResolveClick(context.Background(), "ABC123", nil, domain.RequestMeta{})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, f.db.Clicks())
}

func TestResolveClickBuffersWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")
	f.db.FailNext("stats.RecordClick", errors.New("connection reset"))

	res, err := f.uc.ResolveClick(context.Background(), "ABC123", nil, domain.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Buffered)

	// the failed transaction left nothing behind
	assert.Empty(t, f.db.Clicks())
	assert.Zero(t, f.affiliate(t, a.ID).TotalClicks)
	require.Len(t, f.buffer.clicks, 1)

	require.NoError(t, f.uc.RecordClick(context.Background(), f.buffer.clicks[0]))
	assert.Len(t, f.db.Clicks(), 1)
	assert.EqualValues(t, 1, f.affiliate(t, a.ID).TotalClicks)
}

func TestResolveClickDoesNotBufferRejectedClicks(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")
	f.db.FailNext("clicks.Create", domain.ErrAffiliateNotFound)

	res, err := f.uc.ResolveClick(context.Background(), "ABC123", nil, domain.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrAffiliateNotFound)
	assert.Nil(t, res)
	assert.Empty(t, f.buffer.clicks)
	assert.Empty(t, f.db.Clicks())
	assert.Zero(t, f.affiliate(t, a.ID).TotalClicks)
}

func TestResolveClickReturnsErrorWhenBufferUnavailable(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "user-1", "ABC123")
	f.buffer.err = errors.New("disk full")
	writeErr := errors.New("connection reset")
	f.db.FailNext("clicks.Create", writeErr)

	res, err := f.uc.ResolveClick(context.Background(), "ABC123", nil, domain.RequestMeta{})
	assert.ErrorIs(t, err, writeErr)
	assert.Nil(t, res)
}

func TestRecordClickReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")
	click := &domain.AffiliateClick{ID: "click-1", AffiliateID: a.ID}

	require.NoError(t, f.uc.RecordClick(context.Background(), click))
	require.NoError(t, f.uc.RecordClick(context.Background(), click))

	assert.Len(t, f.db.Clicks(), 1)
	assert.EqualValues(t, 1, f.affiliate(t, a.ID).TotalClicks)
}

// The memory store serializes transactions, so this checks that the use case
// issues one counter update per click and loses none. Atomicity of the increment
// itself belongs to the single UPDATE statements in repository/postgres.
func TestConcurrentClicksAreAllCounted(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")

	const workers, perWorker = 16, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := f.uc.ResolveClick(context.Background(), "ABC123", nil, domain.RequestMeta{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, workers*perWorker, f.affiliate(t, a.ID).TotalClicks)
	assert.Len(t, f.db.Clicks(), workers*perWorker)
}

func TestResolveOrderAffiliate(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "user-1", "ABC123")
	f.enroll(t, "user-2", "DEF456")

	valid, _, err := f.codec.Encode("ABC123")
	require.NoError(t, err)
	unknown, _, err := f.codec.Encode("FFFFFF")
	require.NoError(t, err)
	forged, _, err := referral.NewCodec("other-secret", "", 0).Encode("DEF456")
	require.NoError(t, err)

	got, err := f.uc.ResolveOrderAffiliate(context.Background(), valid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	for name, marker := range map[string]string{"absent": "", "unknown code": unknown, "forged": forged, "garbage": "abc.def.ghi"} {
		got, err := f.uc.ResolveOrderAffiliate(context.Background(), marker)
		require.NoError(t, err, name)
		assert.Nil(t, got, name)
	}

	assert.Empty(t, f.db.Clicks())
}
