package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Callback is a gateway notification reduced to what reconciliation needs.
type Callback struct {
	CheckoutID        string
	MerchantRequestID string
	Outcome           Outcome
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes an STK push result notification. ResultCode 0 is the
// only success; every other code (cancelled by user, timeout, insufficient
// funds) is a failure.
func ParseCallback(body []byte) (*Callback, error) {
	var env stkCallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode stk callback: %w", err)
	}

	stk := env.Body.StkCallback
	if stk == nil {
		return nil, fmt.Errorf("decode stk callback: missing Body.stkCallback")
	}
	if strings.TrimSpace(stk.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("decode stk callback: missing CheckoutRequestID")
	}

	cb := &Callback{
		CheckoutID:        stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		Outcome:           OutcomeFailure,
		ResultCode:        stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
	}
	if stk.ResultCode == 0 {
		cb.Outcome = OutcomeSuccess
	}

	if stk.CallbackMetadata != nil {
		for _, item := range stk.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" && item.Value != nil {
				cb.ReceiptNumber = fmt.Sprint(item.Value)
			}
		}
	}

	return cb, nil
}
