package error

// GenericError is implemented by errors that carry an HTTP status and
// a machine-readable code for the REST error envelope.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}
