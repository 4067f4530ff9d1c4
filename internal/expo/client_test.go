package expo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wagmicrew/TFX-APP-sub001/internal/expo"
)

func TestSendMessagesSubmitsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/--/api/v2/push/send" {
			t.Errorf("got %s %s, want POST /--/api/v2/push/send", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q, want bearer credential", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %q", got)
		}

		// The push API takes a bare array, not a wrapper object.
		var batch []expo.Message
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if len(batch) != 2 || batch[0].To != "ExponentPushToken[alice]" {
			t.Errorf("got batch %+v, want the two submitted messages", batch)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"ticket-1"},
			{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}
		]}`))
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "test-token", 0)
	tickets, err := c.SendMessages(context.Background(), []expo.Message{
		{To: "ExponentPushToken[alice]", Title: "Schedule update", Body: "Your lesson moved to 14:00."},
		{To: "ExponentPushToken[bob]", Title: "Schedule update", Body: "Your lesson moved to 14:00."},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(tickets))
	}
	if !tickets[0].OK() || tickets[0].ID != "ticket-1" {
		t.Fatalf("first ticket = %+v, want accepted", tickets[0])
	}
	if tickets[1].OK() || tickets[1].Details == nil || tickets[1].Details.Error != expo.ErrorDeviceNotRegistered {
		t.Fatalf("second ticket = %+v, want device-gone rejection", tickets[1])
	}
}

func TestSendMessagesBatchCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized batch must not reach the gateway")
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)

	msgs := make([]expo.Message, expo.MaxBatch+1)
	for i := range msgs {
		msgs[i] = expo.Message{To: "ExponentPushToken[x]", Body: "hello"}
	}
	if _, err := c.SendMessages(context.Background(), msgs); err == nil {
		t.Fatal("expected batch cap error")
	}

	tickets, err := c.SendMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if tickets != nil {
		t.Fatalf("empty batch returned tickets %+v", tickets)
	}
}

func TestSendMessagesTicketCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-1"}]}`))
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)
	_, err := c.SendMessages(context.Background(), []expo.Message{
		{To: "ExponentPushToken[alice]", Body: "a"},
		{To: "ExponentPushToken[bob]", Body: "b"},
	})
	if err == nil {
		t.Fatal("expected mismatch error, outcomes cannot be attributed")
	}
}

func TestSendMessagesRequestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"code":"PUSH_TOO_MANY_EXPERIENCE_IDS","message":"mixed projects"}]}`))
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)
	_, err := c.SendMessages(context.Background(), []expo.Message{{To: "ExponentPushToken[x]", Body: "a"}})
	if err == nil || !strings.Contains(err.Error(), "PUSH_TOO_MANY_EXPERIENCE_IDS") {
		t.Fatalf("got %v, want rejection carrying the gateway code", err)
	}
}

func TestSendMessagesGatewayStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)
	_, err := c.SendMessages(context.Background(), []expo.Message{{To: "ExponentPushToken[x]", Body: "a"}})
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("got %v, want status and body snippet", err)
	}
}

func TestGetReceipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/--/api/v2/push/getReceipts" {
			t.Errorf("got path %s, want /--/api/v2/push/getReceipts", r.URL.Path)
		}
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if len(req.IDs) != 2 || req.IDs[0] != "ticket-1" {
			t.Errorf("got ids %v, want the two requested tickets", req.IDs)
		}
		_, _ = w.Write([]byte(`{"data":{
			"ticket-1":{"status":"ok"},
			"ticket-2":{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}}
		}}`))
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)
	receipts, err := c.GetReceipts(context.Background(), []string{"ticket-1", "ticket-2"})
	if err != nil {
		t.Fatalf("get receipts: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("got %d receipts, want 2", len(receipts))
	}
	if !receipts["ticket-1"].OK() {
		t.Fatalf("ticket-1 = %+v, want ok", receipts["ticket-1"])
	}
	if !receipts["ticket-2"].DeviceGone() {
		t.Fatalf("ticket-2 = %+v, want device gone", receipts["ticket-2"])
	}
}

func TestGetReceiptsEdgeCases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	c := expo.New(srv.URL, "", 0)

	// No ids resolves locally without a round trip.
	receipts, err := c.GetReceipts(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty ids: %v", err)
	}
	if receipts == nil || len(receipts) != 0 {
		t.Fatalf("empty ids: got %v, want empty map", receipts)
	}

	ids := make([]string, expo.MaxBatch+1)
	for i := range ids {
		ids[i] = "ticket"
	}
	if _, err := c.GetReceipts(context.Background(), ids); err == nil {
		t.Fatal("expected receipt cap error")
	}

	// Unsettled tickets leave data null; the caller still gets a usable map.
	receipts, err = c.GetReceipts(context.Background(), []string{"ticket-1"})
	if err != nil {
		t.Fatalf("null data: %v", err)
	}
	if receipts == nil || len(receipts) != 0 {
		t.Fatalf("null data: got %v, want empty map", receipts)
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Any response proves reachability, even an unhappy one.
		w.WriteHeader(http.StatusInternalServerError)
	}))

	c := expo.New(srv.URL, "", 0)
	if err := c.Healthy(context.Background()); err != nil {
		t.Fatalf("healthy: %v", err)
	}

	srv.Close()
	if err := c.Healthy(context.Background()); err == nil {
		t.Fatal("expected error once the gateway is unreachable")
	}
}
