package models

// PreprocessOptionsRequest is the JSON form of normalizer options. Unknown
// keys are ignored by the decoder.
type PreprocessOptionsRequest struct {
	Resize    []int `json:"resize,omitempty"`
	Normalize bool  `json:"normalize,omitempty"`
	Enhance   bool  `json:"enhance,omitempty"`
}

// PredictRequest is the JSON body accepted by the single prediction route.
// One of Image or ImageURL must be present.
type PredictRequest struct {
	Image    string                    `json:"image,omitempty"`
	ImageURL string                    `json:"image_url,omitempty"`
	Options  *PreprocessOptionsRequest `json:"options,omitempty"`
}

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error"`
	Data   interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) SuccessResponse {
	return SuccessResponse{Status: "success", Data: data}
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Status: "error", Error: message}
}
