package respond

// ContentTypeText is the media type of plain-text route responses.
const ContentTypeText = "text/plain; charset=utf-8"

// TextOutput is a plain-text response. Huma writes a []byte body verbatim.
type TextOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Text wraps s as a text/plain UTF-8 response.
func Text(s string) *TextOutput {
	return &TextOutput{ContentType: ContentTypeText, Body: []byte(s)}
}
