package utils

// ResponseData is the envelope returned by every REST endpoint.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics on error so the recovery middleware can translate
// it into the proper HTTP response. Handlers stay linear this way.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
