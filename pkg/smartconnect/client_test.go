package smartconnect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(Config{APIKey: "test-key", RootURL: srv.URL, HTTPClient: srv.Client()})
	return c, srv
}

func TestGenerateSession_Success(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes["api.login"] {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-PrivateKey"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"jwtToken":"jwt-1","refreshToken":"ref-1","feedToken":"feed-1"}}`))
	})
	defer srv.Close()

	tok, err := c.GenerateSession(context.Background(), "C123", "pin", "123456")
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}
	if tok.JWTToken != "jwt-1" || tok.RefreshToken != "ref-1" {
		t.Errorf("unexpected tokens: %+v", tok)
	}
}

func TestGenerateSession_StatusFalseNormalized(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Invalid totp","errorcode":"AB1050","data":null}`))
	})
	defer srv.Close()

	_, err := c.GenerateSession(context.Background(), "C123", "pin", "000000")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "AB1050" || apiErr.Message != "Invalid totp" {
		t.Errorf("unexpected normalized error: %+v", apiErr)
	}
}

func TestErrorTypeShapeNormalized(t *testing.T) {
	// Auth service failures use error_type/message instead of errorcode.
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error_type":"TokenException","message":"Token is expired"}`))
	})
	defer srv.Close()

	_, err := c.PlaceOrder(context.Background(), "stale-token", OrderParams{})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "TokenException" {
		t.Errorf("expected TokenException code, got %q", apiErr.Code)
	}
	if !apiErr.IsAuthError() {
		t.Error("TokenException should classify as an auth error")
	}
}

func TestPlaceOrder_ReturnsOrderID(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"script":"NIFTY28AUG2524000CE","orderid":"230825000000123"}}`))
	})
	defer srv.Close()

	id, err := c.PlaceOrder(context.Background(), "jwt-1", OrderParams{
		Variety: "NORMAL", TradingSymbol: "NIFTY28AUG2524000CE", SymbolToken: "43125",
		TransactionType: "SELL", Exchange: "NFO", OrderType: "MARKET",
		ProductType: "CARRYFORWARD", Duration: "DAY", Quantity: "1500",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if id != "230825000000123" {
		t.Errorf("unexpected order id %q", id)
	}
}

func TestSearchScrip_ParsesLotSize(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":[{"exchange":"NFO","tradingsymbol":"NIFTY28AUG2524000CE","symboltoken":"43125","lotsize":"75"}]}`))
	})
	defer srv.Close()

	rows, err := c.SearchScrip(context.Background(), "jwt-1", "NFO", "NIFTY28AUG2524000CE")
	if err != nil {
		t.Fatalf("search scrip: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].LotSizeInt() != 75 {
		t.Errorf("expected lot size 75, got %d", rows[0].LotSizeInt())
	}
}

func TestTransportErrorDistinct(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // force connection failure

	_, err := c.PlaceOrder(context.Background(), "jwt-1", OrderParams{})
	if _, ok := err.(*TransportError); !ok {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
}
