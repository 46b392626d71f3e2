package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/agent"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

func newTestHandlers() (*handlers, *agent.Agent) {
	a := agent.New(agent.Options{
		BufferSizeExp:   6,
		CheckpointFreq:  4,
		AssetBufferSize: 16,
		Log:             zerolog.Nop(),
	})
	return &handlers{agent: a, opts: Options{DefaultSampleCount: 100, DefaultHeartbeat: 10 * time.Second}}, a
}

func newRequestWithChiParam(method, target, param, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestProbeAllListsEveryDevice(t *testing.T) {
	h, a := newTestHandlers()
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	if err := a.AddDevice(d); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	h.probeAll(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body probeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Devices) != 1 || body.Devices[0].UUID != "dev1" {
		t.Errorf("Devices = %+v, want one device uuid dev1", body.Devices)
	}
}

func TestProbeDeviceNotFound(t *testing.T) {
	h, _ := newTestHandlers()
	rec := httptest.NewRecorder()
	req := newRequestWithChiParam("GET", "/missing/probe", "device", "missing")
	h.probeDevice(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCurrentReturnsLatestSnapshot(t *testing.T) {
	h, a := newTestHandlers()
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	if err := a.AddDevice(d); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	a.DeliverObservation(observation.New("temp1", observation.KindSample, time.Now(), model.DoubleValue(42.5)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/current", nil)
	h.current(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body observationsByID
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	view, ok := body["temp1"]
	if !ok {
		t.Fatal("expected temp1 in current snapshot")
	}
	if v, ok := view.Value.(float64); !ok || v != 42.5 {
		t.Errorf("temp1 value = %v, want 42.5", view.Value)
	}
}

func TestSampleReturnsRangeWithNextSequence(t *testing.T) {
	h, a := newTestHandlers()
	d := model.NewDevice("dev1", "Mill")
	d.AddDataItem(&model.DataItem{ID: "temp1", Category: model.CategorySample})
	if err := a.AddDevice(d); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	for i := 0; i < 5; i++ {
		a.DeliverObservation(observation.New("temp1", observation.KindSample, time.Now(), model.DoubleValue(float64(i))))
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sample?count=3", nil)
	h.sample(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body sampleChunk
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Observations) != 3 {
		t.Errorf("Observations len = %d, want 3", len(body.Observations))
	}
	if body.NextSequence != 4 {
		t.Errorf("NextSequence = %d, want 4", body.NextSequence)
	}
	if body.EndOfBuffer {
		t.Error("EndOfBuffer = true, want false with 2 observations remaining")
	}
}

func TestSampleInvalidParameterAccumulatesErrors(t *testing.T) {
	h, _ := newTestHandlers()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sample?count=nope&from=nope-too", nil)
	h.sample(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Details) != 2 {
		t.Errorf("Details len = %d, want 2 accumulated errors", len(body.Details))
	}
}

func TestAssetLifecyclePutGetDelete(t *testing.T) {
	h, a := newTestHandlers()
	d := model.NewDevice("dev1", "Mill")
	if err := a.AddDevice(d); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	putReq := newRequestWithChiParam("PUT", "/asset/tool1", "id", "tool1")
	putReq.Body = jsonBody(t, assetMutationBody{DeviceUUID: "dev1", Type: "Tool"})
	putRec := httptest.NewRecorder()
	h.putAsset(putRec, putReq)
	if putRec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", putRec.Code)
	}

	getReq := newRequestWithChiParam("GET", "/asset/tool1", "id", "tool1")
	getRec := httptest.NewRecorder()
	h.getAsset(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", getRec.Code)
	}

	delReq := newRequestWithChiParam("DELETE", "/asset/tool1", "id", "tool1")
	delRec := httptest.NewRecorder()
	h.deleteAsset(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", delRec.Code)
	}

	asset, ok := a.Assets.Get("tool1")
	if !ok || !asset.Removed {
		t.Error("expected asset to be tombstoned after DELETE")
	}
}

func TestGetAssetNotFound(t *testing.T) {
	h, _ := newTestHandlers()
	rec := httptest.NewRecorder()
	req := newRequestWithChiParam("GET", "/asset/none", "id", "none")
	h.getAsset(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func jsonBody(t *testing.T, v any) io.ReadCloser {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return io.NopCloser(bytes.NewReader(b))
}
