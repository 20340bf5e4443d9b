package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callcard-platform/internal/calls"
	"callcard-platform/internal/voucher"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *voucher.Service, *calls.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	vsvc := voucher.NewService(voucher.NewMemoryRepo(), nil, time.Second)
	csvc := calls.NewService(calls.NewMemoryRepo(), vsvc, nil, time.Second)
	h := Handlers{
		Vouchers:  vsvc,
		Allocator: voucher.NewAllocator(vsvc, 5),
		Calls:     csvc,
	}

	r := gin.New()
	r.POST("/v1/vouchers/validate", h.ValidateVoucher)
	r.POST("/v1/calls/start", h.StartCall)
	r.POST("/v1/calls/:call_id/end", h.EndCall)
	r.POST("/v1/calls/:call_id/cancel", h.CancelCall)
	r.POST("/v1/admin/vouchers", h.GenerateVoucher)
	r.POST("/v1/admin/vouchers/batch", h.GenerateVoucherBatch)
	r.GET("/v1/admin/vouchers", h.ListVouchers)
	r.GET("/v1/admin/vouchers/:id", h.GetVoucher)
	return r, vsvc, csvc
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateAndValidateVoucher(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers", `{"duration_minutes":30}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created voucher.Voucher
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode voucher: %v", err)
	}
	if len(created.Code) != voucher.CodeLength {
		t.Fatalf("unexpected code %q", created.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/vouchers/validate",
		fmt.Sprintf(`{"code":%q,"device_id":"dev-1"}`, created.Code))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res voucher.ValidationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Valid || res.RemainingMinutes != 30 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestValidateUnknownCodeReturnsInvalidNotError(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/vouchers/validate",
		`{"code":"ZZZZZZZZZZZZ","device_id":"dev-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res voucher.ValidationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Valid {
		t.Fatalf("expected invalid")
	}
}

func TestValidateMissingDeviceID(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/vouchers/validate", `{"code":"ABCDEF123456"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGenerateBatch(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers/batch",
		`{"quantity":5,"duration_minutes":15}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		BatchID string   `json:"batch_id"`
		Codes   []string `json:"codes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if resp.BatchID == "" || len(resp.Codes) != 5 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}
}

func TestGenerateBatchQuantityBounds(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, body := range []string{
		`{"quantity":0,"duration_minutes":15}`,
		`{"quantity":1001,"duration_minutes":15}`,
	} {
		w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers/batch", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers", `{"duration_minutes":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create voucher: %d", w.Code)
	}
	var v voucher.Voucher
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode voucher: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls/start",
		fmt.Sprintf(`{"voucher_id":%q,"phone_number":"+15551234567","country_code":"US","call_type":"local"}`, v.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("start call: %d: %s", w.Code, w.Body.String())
	}
	var started calls.StartResult
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.CallID == "" || started.RemainingMinutes != 10 {
		t.Fatalf("unexpected start result: %+v", started)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls/"+started.CallID+"/end",
		`{"duration_seconds":185}`)
	if w.Code != http.StatusOK {
		t.Fatalf("end call: %d: %s", w.Code, w.Body.String())
	}
	var ended calls.EndResult
	if err := json.Unmarshal(w.Body.Bytes(), &ended); err != nil {
		t.Fatalf("decode end: %v", err)
	}
	if ended.BilledMinutes != 4 || ended.RemainingMinutes != 6 {
		t.Fatalf("unexpected end result: %+v", ended)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls/"+started.CallID+"/end",
		`{"duration_seconds":185}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("second end: expected 409, got %d", w.Code)
	}
}

func TestStartCallUnknownVoucher(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/calls/start",
		`{"voucher_id":"missing","phone_number":"+15551234567","country_code":"US","call_type":"local"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelCall(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers", `{"duration_minutes":5}`)
	var v voucher.Voucher
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode voucher: %v", err)
	}
	w = doJSON(t, r, http.MethodPost, "/v1/calls/start",
		fmt.Sprintf(`{"voucher_id":%q,"phone_number":"+15551234567","country_code":"US","call_type":"local"}`, v.ID))
	var started calls.StartResult
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls/"+started.CallID+"/cancel", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}

	// No debit happened.
	w = doJSON(t, r, http.MethodGet, "/v1/admin/vouchers/"+v.ID, "")
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode voucher: %v", err)
	}
	if v.RemainingMinutes != 5 {
		t.Fatalf("expected untouched balance, got %d", v.RemainingMinutes)
	}
}

func TestListVouchersFilters(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/v1/admin/vouchers", `{"duration_minutes":20}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("create: %d", w.Code)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/v1/admin/vouchers?active=true&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var resp struct {
		Items []voucher.Voucher `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Total != 3 || len(resp.Items) != 2 {
		t.Fatalf("unexpected list: total=%d items=%d", resp.Total, len(resp.Items))
	}
}
