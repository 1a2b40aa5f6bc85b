package handlers

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"captiond/internal/model"
)

// DefaultPrompt is used when the request carries no prompt field.
const DefaultPrompt = "Describe this image."

// Captioner is the inference pipeline behind the analyze endpoint.
type Captioner interface {
	Generate(ctx context.Context, img image.Image, prompt string) ([]model.Caption, error)
}

type Handler struct {
	captioner Captioner
	log       *zap.Logger
}

func NewHandler(captioner Captioner, log *zap.Logger) *Handler {
	return &Handler{
		captioner: captioner,
		log:       log,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) AnalyzeImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided. Use 'file' as the form field name"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image format. Supported: JPEG, PNG"})
		return
	}

	prompt := c.DefaultPostForm("prompt", DefaultPrompt)

	h.log.Info("Analyzing image",
		zap.String("filename", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
		zap.String("format", format))

	result, err := h.captioner.Generate(c.Request.Context(), img, prompt)
	if err != nil {
		h.log.Error("Caption generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caption generation failed"})
		return
	}

	c.JSON(http.StatusOK, model.AnalyzeResponse{Result: result})
}
