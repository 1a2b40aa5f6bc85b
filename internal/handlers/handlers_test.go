package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"captiond/internal/model"
)

type stubCaptioner struct {
	gotPrompt string
	err       error
}

func (s *stubCaptioner) Generate(_ context.Context, _ image.Image, prompt string) ([]model.Caption, error) {
	s.gotPrompt = prompt
	if s.err != nil {
		return nil, s.err
	}
	return []model.Caption{{GeneratedText: "a dog on a beach"}}, nil
}

func newTestRouter(captioner Captioner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(captioner, zap.NewNop())
	router.GET("/health", h.Health)
	router.POST("/analyze-image/", h.AnalyzeImage)
	return router
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, fileBytes []byte, prompt string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if fileBytes != nil {
		part, err := writer.CreateFormFile("file", "test.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(fileBytes); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			t.Fatalf("failed to write prompt field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func postAnalyze(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze-image/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeImageDefaultPrompt(t *testing.T) {
	stub := &stubCaptioner{}
	router := newTestRouter(stub)

	body, contentType := multipartBody(t, pngBytes(t), "")
	w := postAnalyze(router, body, contentType)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.gotPrompt != DefaultPrompt {
		t.Errorf("expected default prompt %q, got %q", DefaultPrompt, stub.gotPrompt)
	}

	var resp model.AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].GeneratedText != "a dog on a beach" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}
}

func TestAnalyzeImageWithPrompt(t *testing.T) {
	stub := &stubCaptioner{}
	router := newTestRouter(stub)

	body, contentType := multipartBody(t, pngBytes(t), "What is in the background?")
	w := postAnalyze(router, body, contentType)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.gotPrompt != "What is in the background?" {
		t.Errorf("prompt not forwarded, got %q", stub.gotPrompt)
	}
}

func TestAnalyzeImageRejectsNonImage(t *testing.T) {
	router := newTestRouter(&stubCaptioner{})

	body, contentType := multipartBody(t, []byte("definitely not an image"), "")
	w := postAnalyze(router, body, contentType)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeImageRejectsMissingFile(t *testing.T) {
	router := newTestRouter(&stubCaptioner{})

	body, contentType := multipartBody(t, nil, "Describe")
	w := postAnalyze(router, body, contentType)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeImageGenerationFailure(t *testing.T) {
	stub := &stubCaptioner{err: errors.New("session blew up")}
	router := newTestRouter(stub)

	body, contentType := multipartBody(t, pngBytes(t), "")
	w := postAnalyze(router, body, contentType)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not valid JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubCaptioner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("health response is not valid JSON: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("unexpected status: %q", resp["status"])
	}
}
