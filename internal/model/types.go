package model

// Metadata describes the exported encoder/decoder pair and its tokenizer.
// It is read from metadata.json next to the ONNX files.
type Metadata struct {
	ImageSize   int        `json:"image_size"`
	Mean        [3]float32 `json:"mean"`
	Std         [3]float32 `json:"std"`
	NumPatches  int64      `json:"num_patches"`
	HiddenSize  int64      `json:"hidden_size"`
	VocabSize   int64      `json:"vocab_size"`
	MaxLength   int64      `json:"max_length"`
	BosTokenID  int64      `json:"bos_token_id"`
	EosTokenID  int64      `json:"eos_token_id"`
	PadTokenID  int64      `json:"pad_token_id"`
	DoLowerCase bool       `json:"do_lower_case"`
}

type Caption struct {
	GeneratedText string `json:"generated_text"`
}

type AnalyzeResponse struct {
	Result []Caption `json:"result"`
}
