package llm

// PartType discriminates the content parts of a normalized message.
type PartType string

const (
	PartText      PartType = "text"
	PartImageURL  PartType = "image_url"
	PartImageData PartType = "image_data"
)

// Part is one piece of a normalized message's content.
type Part struct {
	Type PartType

	// Text is set for PartText.
	Text string

	// URL and Detail are set for PartImageURL.
	URL    string
	Detail string

	// MIMEType and Data (base64) are set for PartImageData.
	MIMEType string
	Data     string
}

// Message is one normalized message, ready for an adapter to map into its
// provider's wire shape.
type Message struct {
	Role  string
	Parts []Part
}

// Text returns the concatenated text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Payload is the provider-specific request produced by the normalizer and
// consumed by exactly one adapter. The normalizer has already resolved the
// attachment strategy: images appear as parts, extracted file text as
// synthesized system content, and native-upload files in UploadFiles.
type Payload struct {
	Provider string
	Model    string

	// System carries system texts for providers with a separate system
	// field. For other providers system turns stay in Messages.
	System []string

	Messages []Message

	// UploadFiles lists files the adapter must push to the provider's file
	// store before completing (the file-session path).
	UploadFiles []FileRef

	MaxTokens   int
	Temperature *float64
}

func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}
