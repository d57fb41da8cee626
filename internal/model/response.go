package model

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewResponse(message string, data interface{}) Response {
	return Response{
		Message: message,
		Data:    data,
	}
}

// FieldResponse carries a single persistent field.
type FieldResponse struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}
