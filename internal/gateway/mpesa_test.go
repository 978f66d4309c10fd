package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"hostel-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDaraja struct {
	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	lastPush   atomic.Value // stkPushRequest
	pushStatus int
	pushBody   string
}

func (f *fakeDaraja) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"tok-123","expires_in":"3599"}`))
	})
	mux.HandleFunc("/stkpush", func(w http.ResponseWriter, r *http.Request) {
		f.pushCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req stkPushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.lastPush.Store(req)
		if f.pushStatus != 0 {
			w.WriteHeader(f.pushStatus)
		}
		w.Write([]byte(f.pushBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const acceptedBody = `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`

func newTestClient(srv *httptest.Server) *MpesaClient {
	c := NewMpesaClient(utils.MpesaConfig{
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		OAuthURL:          srv.URL + "/oauth",
		STKPushURL:        srv.URL + "/stkpush",
		ShortCode:         "174379",
		Passkey:           "passkey",
		CallbackURL:       "https://example.com/api/payments/mpesa/callback",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
	}, NewMemoryTokenCache(), zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestPushBuildsDarajaRequest(t *testing.T) {
	fake := &fakeDaraja{pushBody: acceptedBody}
	client := newTestClient(fake.server(t))

	res, err := client.Push(context.Background(), PushRequest{
		Amount:           5000,
		Phone:            "0712 345 678",
		AccountReference: "Booking1a2b3c4d",
		Description:      "Booking Payment",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutID)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)

	sent := fake.lastPush.Load().(stkPushRequest)
	assert.Equal(t, "174379", sent.BusinessShortCode)
	assert.Equal(t, "20240301123000", sent.Timestamp)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20240301123000")), sent.Password)
	assert.Equal(t, "CustomerPayBillOnline", sent.TransactionType)
	assert.Equal(t, int64(5000), sent.Amount)
	assert.Equal(t, "254712345678", sent.PartyA)
	assert.Equal(t, "254712345678", sent.PhoneNumber)
	assert.Equal(t, "174379", sent.PartyB)
	assert.Equal(t, "Booking1a2b3c4d", sent.AccountReference)
	assert.Equal(t, "Booking Payment", sent.TransactionDesc)
}

func TestPushReusesCachedToken(t *testing.T) {
	fake := &fakeDaraja{pushBody: acceptedBody}
	client := newTestClient(fake.server(t))

	for i := 0; i < 3; i++ {
		_, err := client.Push(context.Background(), PushRequest{Amount: 1, Phone: "254712345678"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	assert.Equal(t, int32(3), fake.pushCalls.Load())
}

func TestPushErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusServiceUnavailable, `{"errorCode":"503.001.01","errorMessage":"down"}`, ErrUnavailable},
		{"bad request", http.StatusBadRequest, `{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`, ErrRejected},
		{"not accepted", http.StatusOK, `{"ResponseCode":"1","ResponseDescription":"Rejected"}`, ErrRejected},
		{"garbage", http.StatusOK, `not json`, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDaraja{pushStatus: tt.status, pushBody: tt.body}
			client := newTestClient(fake.server(t))

			_, err := client.Push(context.Background(), PushRequest{Amount: 1, Phone: "254712345678"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenFailureIsUnavailable(t *testing.T) {
	fake := &fakeDaraja{pushBody: acceptedBody}
	srv := fake.server(t)
	client := newTestClient(srv)
	client.cfg.ConsumerSecret = "wrong"

	_, err := client.Push(context.Background(), PushRequest{Amount: 1, Phone: "254712345678"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(0), fake.pushCalls.Load())
}

func TestUnreachableGatewayIsUnavailable(t *testing.T) {
	fake := &fakeDaraja{pushBody: acceptedBody}
	srv := fake.server(t)
	client := newTestClient(srv)
	srv.Close()

	_, err := client.Push(context.Background(), PushRequest{Amount: 1, Phone: "254712345678"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryTokenCacheExpires(t *testing.T) {
	now := time.Now()
	cache := &memoryTokenCache{now: func() time.Time { return now }}
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "abc", time.Minute))
	token, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "def", time.Minute))
	require.NoError(t, cache.Delete(ctx))
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)
}

func TestRedisTokenCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	cache := NewRedisTokenCache(client, "test:mpesa:token")
	t.Cleanup(func() { cache.Delete(ctx) })

	require.NoError(t, cache.Set(ctx, "abc", time.Minute))
	token, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	require.NoError(t, cache.Delete(ctx))
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
