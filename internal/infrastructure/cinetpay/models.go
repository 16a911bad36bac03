package cinetpay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const initSuccessCode = "201"

type initRequest struct {
	APIKey              string `json:"apikey"`
	SiteID              string `json:"site_id"`
	TransactionID       string `json:"transaction_id"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	Description         string `json:"description"`
	NotifyURL           string `json:"notify_url"`
	ReturnURL           string `json:"return_url"`
	CancelURL           string `json:"cancel_url,omitempty"`
	Channels            string `json:"channels"`
	Lang                string `json:"lang"`
	Metadata            string `json:"metadata"`
	CustomerID          string `json:"customer_id,omitempty"`
	CustomerName        string `json:"customer_name"`
	CustomerSurname     string `json:"customer_surname"`
	CustomerEmail       string `json:"customer_email"`
	CustomerPhoneNumber string `json:"customer_phone_number"`
	CustomerAddress     string `json:"customer_address"`
	CustomerCity        string `json:"customer_city"`
	CustomerCountry     string `json:"customer_country"`
}

type initResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Data        struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	} `json:"data"`
}

type checkRequest struct {
	APIKey        string `json:"apikey"`
	SiteID        string `json:"site_id"`
	TransactionID string `json:"transaction_id"`
}

type checkResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Amount        flexInt `json:"amount"`
		Currency      string  `json:"currency"`
		Status        string  `json:"status"`
		PaymentMethod string  `json:"payment_method"`
		Description   string  `json:"description"`
		OperatorID    string  `json:"operator_id"`
		PaymentDate   string  `json:"payment_date"`
	} `json:"data"`
}

// flexInt accepts amounts sent either as JSON numbers or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	var fl float64
	if err := json.Unmarshal([]byte(s), &fl); err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	if fl != float64(int64(fl)) {
		return fmt.Errorf("amount %q has a fractional part", s)
	}
	*f = flexInt(int64(fl))
	return nil
}
