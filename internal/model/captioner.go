package model

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Captioner runs an image-to-text model exported as a vision encoder and a
// text decoder ONNX pair. Both sessions and their tensors are created once
// at load time; Generate serializes access with a mutex because the tensors
// are shared across calls.
type Captioner struct {
	mu        sync.Mutex
	Metadata  Metadata
	tokenizer *Tokenizer

	encoder *ort.AdvancedSession
	decoder *ort.AdvancedSession

	pixelValues   *ort.Tensor[float32]
	imageEmbeds   *ort.Tensor[float32]
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	logits        *ort.Tensor[float32]
}

func NewCaptioner(modelDir string) (*Captioner, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(filepath.Join(modelDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	tokenizer, err := LoadTokenizer(filepath.Join(modelDir, "vocab.txt"), metadata.DoLowerCase)
	if err != nil {
		return nil, err
	}

	c := &Captioner{
		Metadata:  metadata,
		tokenizer: tokenizer,
	}

	size := int64(metadata.ImageSize)

	c.pixelValues, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel tensor: %w", err)
	}

	c.imageEmbeds, err = ort.NewEmptyTensor[float32](ort.NewShape(1, metadata.NumPatches, metadata.HiddenSize))
	if err != nil {
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create embedding tensor: %w", err)
	}

	c.inputIDs, err = ort.NewEmptyTensor[int64](ort.NewShape(1, metadata.MaxLength))
	if err != nil {
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create input id tensor: %w", err)
	}

	c.attentionMask, err = ort.NewEmptyTensor[int64](ort.NewShape(1, metadata.MaxLength))
	if err != nil {
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create attention mask tensor: %w", err)
	}

	c.logits, err = ort.NewEmptyTensor[float32](ort.NewShape(1, metadata.MaxLength, metadata.VocabSize))
	if err != nil {
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}

	c.encoder, err = ort.NewAdvancedSession(filepath.Join(modelDir, "encoder.onnx"),
		[]string{"pixel_values"}, []string{"image_embeds"},
		[]ort.ArbitraryTensor{c.pixelValues}, []ort.ArbitraryTensor{c.imageEmbeds},
		nil)
	if err != nil {
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create encoder session: %w", err)
	}

	c.decoder, err = ort.NewAdvancedSession(filepath.Join(modelDir, "decoder.onnx"),
		[]string{"input_ids", "attention_mask", "encoder_hidden_states"}, []string{"logits"},
		[]ort.ArbitraryTensor{c.inputIDs, c.attentionMask, c.imageEmbeds},
		[]ort.ArbitraryTensor{c.logits},
		nil)
	if err != nil {
		c.encoder.Destroy()
		c.destroyTensors()
		return nil, fmt.Errorf("failed to create decoder session: %w", err)
	}

	return c, nil
}

// Generate produces a caption for img, seeded by the prompt. Greedy decoding:
// one decoder run per emitted token until EOS or the model's max length.
func (c *Captioner) Generate(ctx context.Context, img image.Image, prompt string) ([]Caption, error) {
	promptIDs := c.tokenizer.Encode(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.pixelValues.GetData(), Preprocess(img, c.Metadata))

	if err := c.encoder.Run(); err != nil {
		return nil, fmt.Errorf("vision encoder failed: %w", err)
	}

	maxLen := int(c.Metadata.MaxLength)
	ids := c.inputIDs.GetData()
	mask := c.attentionMask.GetData()
	for i := 0; i < maxLen; i++ {
		ids[i] = c.Metadata.PadTokenID
		mask[i] = 0
	}

	ids[0] = c.Metadata.BosTokenID
	mask[0] = 1
	n := 1
	for _, id := range promptIDs {
		if n >= maxLen-1 {
			break
		}
		ids[n] = id
		mask[n] = 1
		n++
	}

	vocabSize := int(c.Metadata.VocabSize)
	for n < maxLen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.decoder.Run(); err != nil {
			return nil, fmt.Errorf("text decoder failed: %w", err)
		}

		next := argmax(c.logits.GetData()[(n-1)*vocabSize : n*vocabSize])
		if next == c.Metadata.EosTokenID {
			break
		}
		ids[n] = next
		mask[n] = 1
		n++
	}

	text := c.tokenizer.Decode(ids[:n], map[int64]bool{
		c.Metadata.BosTokenID: true,
		c.Metadata.EosTokenID: true,
		c.Metadata.PadTokenID: true,
	})

	return []Caption{{GeneratedText: text}}, nil
}

func argmax(values []float32) int64 {
	maxIdx := 0
	maxVal := values[0]
	for i, val := range values {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return int64(maxIdx)
}

func (c *Captioner) destroyTensors() {
	if c.pixelValues != nil {
		c.pixelValues.Destroy()
	}
	if c.imageEmbeds != nil {
		c.imageEmbeds.Destroy()
	}
	if c.inputIDs != nil {
		c.inputIDs.Destroy()
	}
	if c.attentionMask != nil {
		c.attentionMask.Destroy()
	}
	if c.logits != nil {
		c.logits.Destroy()
	}
}

func (c *Captioner) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.decoder != nil {
		c.decoder.Destroy()
	}
	if c.encoder != nil {
		c.encoder.Destroy()
	}
	c.destroyTensors()
	ort.DestroyEnvironment()
}
