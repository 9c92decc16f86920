package printjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/smart-printer/internal/doctype"
)

type stubSubmitter struct {
	gotSettings Settings
	gotUploads  []Upload
	result      *Submission
	err         error
}

func (s *stubSubmitter) Submit(_ context.Context, settings Settings, uploads []Upload) (*Submission, error) {
	s.gotSettings = settings
	s.gotUploads = uploads
	return s.result, s.err
}

type stubReader struct {
	detail *JobDetail
	err    error
}

func (s *stubReader) Get(context.Context, string) (*JobDetail, error) {
	return s.detail, s.err
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("failed to write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func newSubmitRouter(svc Submitter, opts HandlerOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/print-jobs", SubmitHandler(svc, opts))
	return router
}

func TestSubmitHandlerSuccess(t *testing.T) {
	svc := &stubSubmitter{result: &Submission{JobID: "JOB_1", TotalPages: 2, Status: StatusPending}}
	router := newSubmitRouter(svc, HandlerOptions{})

	body, contentType := multipartBody(t, map[string]string{
		"colorMode":   "color",
		"sides":       "duplex",
		"pageRange":   "custom",
		"customRange": "1-2",
		"copies":      "3",
	}, []formFile{
		{field: "files[]", name: "a.pdf", contentType: doctype.PDF, data: []byte("%PDF-1.4")},
		{field: "files[]", name: "b.png", contentType: doctype.PNG, data: []byte("png")},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool       `json:"success"`
		JobID   string     `json:"jobId"`
		Data    Submission `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.JobID != "JOB_1" || resp.Data.TotalPages != 2 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	got := svc.gotSettings
	if got.ColorMode != ColorColor || got.Sides != SidesDuplex || got.Orientation != OrientationPortrait ||
		got.PageRange != PageRangeCustom || got.CustomRange != "1-2" || got.Copies != 3 || got.Printer != "printer-1" {
		t.Fatalf("unexpected parsed settings: %#v", got)
	}
	if len(svc.gotUploads) != 2 || svc.gotUploads[0].Filename != "a.pdf" || string(svc.gotUploads[1].Data) != "png" {
		t.Fatalf("unexpected uploads: %#v", svc.gotUploads)
	}
	if svc.gotUploads[0].ContentType != doctype.PDF {
		t.Fatalf("content type should be forwarded, got %q", svc.gotUploads[0].ContentType)
	}
}

func TestSubmitHandlerAcceptsFilesField(t *testing.T) {
	svc := &stubSubmitter{result: &Submission{JobID: "JOB_2"}}
	router := newSubmitRouter(svc, HandlerOptions{})

	body, contentType := multipartBody(t, nil, []formFile{{field: "files", name: "a.pdf", contentType: doctype.PDF, data: []byte("x")}})
	req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || len(svc.gotUploads) != 1 {
		t.Fatalf("unexpected status %d uploads=%d", rec.Code, len(svc.gotUploads))
	}
	if svc.gotSettings != DefaultSettings() {
		t.Fatalf("missing fields should take defaults: %#v", svc.gotSettings)
	}
}

func TestSubmitHandlerNonNumericCopies(t *testing.T) {
	svc := &stubSubmitter{result: &Submission{JobID: "JOB_3"}}
	router := newSubmitRouter(svc, HandlerOptions{})

	body, contentType := multipartBody(t, map[string]string{"copies": "many"}, []formFile{{field: "files[]", name: "a.pdf", data: []byte("x")}})
	req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if svc.gotSettings.Copies != 0 {
		t.Fatalf("non numeric copies should become 0, got %d", svc.gotSettings.Copies)
	}
}

func TestSubmitHandlerSkipsReadingOversizeFile(t *testing.T) {
	svc := &stubSubmitter{err: newValidationError(CodeLimitExceeded, "too large")}
	router := newSubmitRouter(svc, HandlerOptions{MaxFileSize: 4})

	body, contentType := multipartBody(t, nil, []formFile{{field: "files[]", name: "big.pdf", contentType: doctype.PDF, data: []byte("0123456789")}})
	req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(svc.gotUploads) != 1 || svc.gotUploads[0].Data != nil || svc.gotUploads[0].Size != 10 {
		t.Fatalf("oversize upload should carry size only: %#v", svc.gotUploads)
	}
}

func TestSubmitHandlerRejectsNonMultipart(t *testing.T) {
	router := newSubmitRouter(&stubSubmitter{}, HandlerOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", bytes.NewBufferString(`{"copies":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSubmitHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", newValidationError(CodeInvalidInput, "bad"), http.StatusBadRequest, CodeInvalidInput, "bad"},
		{"unsupported", newValidationError(CodeUnsupportedType, "txt"), http.StatusBadRequest, CodeUnsupportedType, "txt"},
		{"limit", newValidationError(CodeLimitExceeded, "big"), http.StatusRequestEntityTooLarge, CodeLimitExceeded, "big"},
		{"storage", newStorageError("a.pdf", "save failed a.pdf", errors.New("disk")), http.StatusInternalServerError, CodeStorageFailed, "save failed a.pdf"},
		{"persistence", newPersistenceError("", "db detail", errors.New("dial tcp")), http.StatusInternalServerError, CodeInternal, "サーバー内部でエラーが発生しました。"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal, "サーバー内部でエラーが発生しました。"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newSubmitRouter(&stubSubmitter{err: tc.err}, HandlerOptions{})
			body, contentType := multipartBody(t, nil, []formFile{{field: "files[]", name: "a.pdf", data: []byte("x")}})
			req := httptest.NewRequest(http.MethodPost, "/api/print-jobs", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp["success"] != false || resp["code"] != tc.code || resp["message"] != tc.message {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestJobHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	detail := &JobDetail{
		Job:   &Job{JobID: "JOB_1", TotalPages: 4, Status: StatusPending},
		Files: []File{{ID: 1, JobID: "JOB_1", OriginalFilename: "a.pdf", PageCount: 4}},
	}
	router := gin.New()
	router.GET("/api/print-jobs/:id", JobHandler(&stubReader{detail: detail}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/print-jobs/JOB_1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp struct {
		Success bool      `json:"success"`
		Data    JobDetail `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Success || resp.Data.Job.TotalPages != 4 || len(resp.Data.Files) != 1 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestJobHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/print-jobs/:id", JobHandler(&stubReader{err: newNotFoundError("JOB_X")}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/print-jobs/JOB_X", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(CodeJobNotFound)) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
