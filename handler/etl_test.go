package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/service"
)

type fakeRunner struct {
	mu      sync.Mutex
	batches [][]model.Batch
	runIDs  []string
	result  func([]model.Batch) []model.RunBatch
}

func (f *fakeRunner) RunBatches(ctx context.Context, batches []model.Batch) []model.RunBatch {
	f.mu.Lock()
	f.batches = append(f.batches, batches)
	id, _ := ctx.Value(logger.RunIDKey).(string)
	f.runIDs = append(f.runIDs, id)
	f.mu.Unlock()

	if f.result != nil {
		return f.result(batches)
	}
	out := make([]model.RunBatch, len(batches))
	for i, b := range batches {
		out[i] = model.RunBatch{DocumentType: b.DocumentType, Documents: len(b.Documents)}
		for _, d := range b.Documents {
			out[i].Succeeded = append(out[i].Succeeded, model.ResultFor(d))
		}
	}
	return out
}

type fakeMetadataReader struct {
	entries map[string][]model.MetadataEntry
	err     error
}

func (f *fakeMetadataReader) Metadata(ctx context.Context, docType model.DocumentType, recordID string) ([]model.MetadataEntry, error) {
	return f.entries[string(docType)+"/"+recordID], f.err
}

func newTestETLHandler(runner BatchRunner, metadata MetadataReader) *ETLHandler {
	h := NewETLHandler(runner, metadata, service.NewRunStore(&config.StoreConfig{MaxRuns: 10}))
	h.background = func(f func()) { f() }
	return h
}

func asClient(clientID string, handle gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_id", clientID)
		handle(c)
	}
}

func postStart(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/etl/start", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestETLHandlerStart(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestETLHandler(runner, nil)

	router := gin.New()
	router.POST("/etl/start", asClient("scheduler", handler.Start))

	w := postStart(router, `{"documents": [
		{"recordId": "r1", "parentId": "p1", "sessionId": "s1", "documentType": "policy", "key": "Polizas/Mayo 2023/a.pdf"},
		{"recordId": "r2", "parentId": "p1", "sessionId": "s1", "documentType": "APPRAISAL", "key": "Tasaciones/Mayo 2023/b.pdf"},
		{"recordId": "r3", "parentId": "p1", "sessionId": "s1", "documentType": "POLICY", "key": "Polizas/Mayo 2023/c.pdf"}
	]}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	runID, _ := resp["run_id"].(string)
	if runID == "" {
		t.Fatal("Expected run_id in response")
	}

	if len(runner.batches) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runner.batches))
	}
	var types []model.DocumentType
	for _, b := range runner.batches[0] {
		types = append(types, b.DocumentType)
	}
	if diff := cmp.Diff([]model.DocumentType{model.DocumentPolicy, model.DocumentAppraisal}, types); diff != "" {
		t.Errorf("batch types mismatch (-want +got):\n%s", diff)
	}
	if len(runner.batches[0][0].Documents) != 2 {
		t.Errorf("Expected 2 policy documents, got %d", len(runner.batches[0][0].Documents))
	}
	if runner.runIDs[0] != runID {
		t.Errorf("Expected run id %s in context, got %s", runID, runner.runIDs[0])
	}

	run := handler.store.Get(runID)
	if run == nil {
		t.Fatal("Expected run to be stored")
	}
	if run.Status != model.StatusCompleted {
		t.Errorf("Expected status %s, got %s", model.StatusCompleted, run.Status)
	}
	if run.ClientID != "scheduler" {
		t.Errorf("Expected client 'scheduler', got '%s'", run.ClientID)
	}
	if run.Documents != 3 {
		t.Errorf("Expected 3 documents, got %d", run.Documents)
	}
}

func TestETLHandlerStartValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `not json`},
		{"missing documents", `{}`},
		{"empty documents", `{"documents": []}`},
		{"unknown type", `{"documents": [{"recordId": "r1", "documentType": "INVOICE", "key": "a.pdf"}]}`},
		{"missing key", `{"documents": [{"recordId": "r1", "documentType": "POLICY"}]}`},
		{"missing record", `{"documents": [{"documentType": "POLICY", "key": "a.pdf"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			handler := newTestETLHandler(runner, nil)

			router := gin.New()
			router.POST("/etl/start", asClient("scheduler", handler.Start))

			w := postStart(router, tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if len(runner.batches) != 0 {
				t.Error("Expected no run to start")
			}
			if handler.store.Count() != 0 {
				t.Errorf("Expected no stored runs, got %d", handler.store.Count())
			}
		})
	}
}

func TestETLHandlerStartAllBatchesFailed(t *testing.T) {
	runner := &fakeRunner{result: func(batches []model.Batch) []model.RunBatch {
		return []model.RunBatch{{DocumentType: batches[0].DocumentType, Error: "notify failed"}}
	}}
	handler := newTestETLHandler(runner, nil)

	router := gin.New()
	router.POST("/etl/start", asClient("scheduler", handler.Start))

	w := postStart(router, `{"documents": [{"recordId": "r1", "documentType": "REGISTRATION", "key": "Inscripciones/Mayo 2023/a.pdf"}]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	run := handler.store.Get(resp["run_id"].(string))
	if run.Status != model.StatusFailed {
		t.Errorf("Expected status %s, got %s", model.StatusFailed, run.Status)
	}
	if run.ErrorMsg != "notify failed" {
		t.Errorf("Expected error 'notify failed', got '%s'", run.ErrorMsg)
	}
}

func TestETLHandlerGetRun(t *testing.T) {
	handler := newTestETLHandler(&fakeRunner{}, nil)
	handler.store.Save(&model.Run{
		ID:        "run-1",
		ClientID:  "scheduler",
		Status:    model.StatusCompleted,
		Documents: 1,
		CreatedAt: time.Now(),
	})

	tests := []struct {
		name           string
		id             string
		client         string
		expectedStatus int
	}{
		{"own run", "run-1", "scheduler", http.StatusOK},
		{"other client", "run-1", "dashboard", http.StatusNotFound},
		{"non-existent", "missing", "scheduler", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/etl/runs/:id", asClient(tt.client, handler.GetRun))

			req := httptest.NewRequest("GET", "/etl/runs/"+tt.id, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				var run model.Run
				if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
					t.Fatalf("Failed to parse response: %v", err)
				}
				if run.ID != "run-1" || run.Status != model.StatusCompleted {
					t.Errorf("Unexpected run: %+v", run)
				}
			}
		})
	}
}

func TestETLHandlerListRuns(t *testing.T) {
	handler := newTestETLHandler(&fakeRunner{}, nil)
	now := time.Now()
	handler.store.Save(&model.Run{ID: "a", ClientID: "scheduler", CreatedAt: now})
	handler.store.Save(&model.Run{ID: "b", ClientID: "scheduler", CreatedAt: now.Add(time.Second)})
	handler.store.Save(&model.Run{ID: "c", ClientID: "dashboard", CreatedAt: now})

	router := gin.New()
	router.GET("/etl/runs", asClient("scheduler", handler.ListRuns))

	req := httptest.NewRequest("GET", "/etl/runs", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string][]map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	runs := response["runs"]
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs for scheduler, got %d", len(runs))
	}
	if runs[0]["id"] != "b" {
		t.Errorf("Expected newest run first, got %v", runs[0]["id"])
	}
}

func TestETLHandlerListRunsEmpty(t *testing.T) {
	handler := newTestETLHandler(&fakeRunner{}, nil)

	router := gin.New()
	router.GET("/etl/runs", asClient("nobody", handler.ListRuns))

	req := httptest.NewRequest("GET", "/etl/runs", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Body.String() != `{"runs":[]}` {
		t.Errorf("Expected empty runs list, got %s", w.Body.String())
	}
}

func TestETLHandlerGetMetadata(t *testing.T) {
	reader := &fakeMetadataReader{entries: map[string][]model.MetadataEntry{
		"POLICY/r1": {{RecordID: "r1", Fields: model.Fields{model.FieldPolicyNumber: "123"}}},
	}}
	handler := newTestETLHandler(&fakeRunner{}, reader)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"found", "/etl/metadata/policy/r1", http.StatusOK},
		{"not found", "/etl/metadata/POLICY/r2", http.StatusNotFound},
		{"unknown type", "/etl/metadata/invoice/r1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/etl/metadata/:type/:id", handler.GetMetadata)

			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestETLHandlerGetMetadataError(t *testing.T) {
	handler := newTestETLHandler(&fakeRunner{}, &fakeMetadataReader{err: errors.New("disk I/O error")})

	router := gin.New()
	router.GET("/etl/metadata/:type/:id", handler.GetMetadata)

	req := httptest.NewRequest("GET", "/etl/metadata/POLICY/r1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestNewETLHandler(t *testing.T) {
	store := service.NewRunStore(&config.StoreConfig{})
	handler := NewETLHandler(&fakeRunner{}, nil, store)
	if handler.store != store {
		t.Error("Expected store to be set")
	}
	if handler.background == nil {
		t.Error("Expected background runner to be set")
	}
}
