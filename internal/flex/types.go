package flex

// Component is a node of a Flex bubble. Boxes use Layout and Contents, texts
// use Text and the styling fields. Field names follow the LINE Flex JSON schema.
type Component struct {
	Type            string      `json:"type"`
	Layout          string      `json:"layout,omitempty"`
	Contents        []Component `json:"contents,omitempty"`
	Text            string      `json:"text,omitempty"`
	Size            string      `json:"size,omitempty"`
	Weight          string      `json:"weight,omitempty"`
	Color           string      `json:"color,omitempty"`
	Wrap            bool        `json:"wrap,omitempty"`
	Flex            int         `json:"flex,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	BorderColor     string      `json:"borderColor,omitempty"`
	BorderWidth     string      `json:"borderWidth,omitempty"`
	CornerRadius    string      `json:"cornerRadius,omitempty"`
	PaddingAll      string      `json:"paddingAll,omitempty"`
}

// Bubble is the Flex container sent as the card.
type Bubble struct {
	Type string     `json:"type"`
	Body *Component `json:"body,omitempty"`
}

const (
	ComponentBox  = "box"
	ComponentText = "text"
	ContainerType = "bubble"

	LayoutVertical   = "vertical"
	LayoutHorizontal = "horizontal"
	LayoutBaseline   = "baseline"
)

// Message is the outcome of a conversion: a TextMessage or a FlexMessage.
type Message interface {
	// PlainText returns the text the message was built from.
	PlainText() string
	isMessage()
}

// TextMessage is a plain text reply.
type TextMessage struct {
	Text string
}

func (m TextMessage) PlainText() string { return m.Text }
func (TextMessage) isMessage()          {}

// FlexMessage is a validated Flex card. Source keeps the markdown it was
// rendered from so a sender can still fall back to plain text.
type FlexMessage struct {
	AltText  string
	Contents Bubble
	Source   string
}

func (m FlexMessage) PlainText() string { return m.Source }
func (FlexMessage) isMessage()          {}
