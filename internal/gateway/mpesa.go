package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"hostel-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Daraja expects timestamps in East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

const (
	timestampLayout = "20060102150405"
	// refresh a little before the gateway expires the token
	tokenSafetyMargin = time.Minute
	defaultTokenTTL   = 55 * time.Minute
)

// MpesaClient submits Lipa na M-Pesa Online (STK push) requests.
type MpesaClient struct {
	cfg     utils.MpesaConfig
	http    *http.Client
	tokens  TokenCache
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func NewMpesaClient(cfg utils.MpesaConfig, tokens TokenCache, log *zap.Logger) *MpesaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = "CustomerPayBillOnline"
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}

	return &MpesaClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log.With(zap.String("gateway", "mpesa")),
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func (c *MpesaClient) token(ctx context.Context) (string, error) {
	if token, ok, err := c.tokens.Get(ctx); err != nil {
		c.log.Warn("Token cache read failed, fetching a new token", zap.Error(err))
	} else if ok {
		return token, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.OAuthURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn("Token request refused",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", fmt.Errorf("%w: token request returned %d", ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", ErrUnavailable)
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(tr.ExpiresIn.String()); err == nil && secs > 0 {
		ttl = time.Duration(secs)*time.Second - tokenSafetyMargin
	}
	if ttl > 0 {
		if err := c.tokens.Set(ctx, tr.AccessToken, ttl); err != nil {
			c.log.Warn("Token cache write failed", zap.Error(err))
		}
	}

	return tr.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// Password is base64(ShortCode + Passkey + Timestamp).
func (c *MpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

func (c *MpesaClient) Push(ctx context.Context, in PushRequest) (*PushResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	phone := utils.NormalizeMSISDN(in.Phone)
	timestamp := c.now().In(eat).Format(timestampLayout)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            in.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  in.AccountReference,
		TransactionDesc:   in.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode stk push: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.STKPushURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build stk push request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("STK push request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: stk push: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out stkPushResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// stale token, the next attempt fetches a fresh one
		if err := c.tokens.Delete(ctx); err != nil {
			c.log.Warn("Token cache delete failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: stk push unauthorized", ErrUnavailable)
	case resp.StatusCode >= http.StatusInternalServerError:
		c.log.Warn("STK push server error",
			zap.Int("status", resp.StatusCode),
			zap.String("error_code", out.ErrorCode),
			zap.String("error_message", out.ErrorMessage),
		)
		return nil, fmt.Errorf("%w: stk push returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		c.log.Warn("STK push rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error_code", out.ErrorCode),
			zap.String("error_message", out.ErrorMessage),
		)
		return nil, fmt.Errorf("%w: %s %s", ErrRejected, out.ErrorCode, out.ErrorMessage)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: malformed stk push response: %v", ErrUnavailable, decodeErr)
	case out.ResponseCode != "0" || out.CheckoutRequestID == "":
		c.log.Warn("STK push not accepted",
			zap.String("response_code", out.ResponseCode),
			zap.String("description", out.ResponseDescription),
		)
		return nil, fmt.Errorf("%w: response code %q: %s", ErrRejected, out.ResponseCode, out.ResponseDescription)
	}

	c.log.Info("STK push accepted",
		zap.String("checkout_id", out.CheckoutRequestID),
		zap.String("merchant_request_id", out.MerchantRequestID),
		zap.String("account_reference", in.AccountReference),
	)

	return &PushResult{
		CheckoutID:        out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}
