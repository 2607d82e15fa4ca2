package domain

// Messages returned to clients in response bodies
const (
	MsgProcessed       = "Image processed successfully"
	MsgInvalidImage    = "Invalid image format"
	MsgMissingImage    = "Missing required image"
	MsgNoSelectedFile  = "No selected file"
	MsgFileNotSaved    = "File not found after saving"
	MsgProcessingError = "Error processing file with model"
)

// Result is the outcome of checking one image. It is either a Success or a
// Failure, never both.
type Result interface {
	// OK reports whether the image decoded
	OK() bool
	result()
}

// Success serializes as {"data": "..."}
type Success struct {
	Message string `json:"data"`
}

// Failure serializes as {"error": "..."}
type Failure struct {
	Reason string `json:"error"`
}

func (Success) OK() bool { return true }
func (Failure) OK() bool { return false }

func (Success) result() {}
func (Failure) result() {}

// Processed is the result for an image that decoded
func Processed() Result {
	return Success{Message: MsgProcessed}
}

// InvalidImage is the result for bytes that did not decode
func InvalidImage() Result {
	return Failure{Reason: MsgInvalidImage}
}
