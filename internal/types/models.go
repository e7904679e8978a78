// internal/types/models.go
package types

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Message is one entry of the chat log. Entries are never mutated once appended.
type Message struct {
	ID     MessageID `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
}

// Event is a candidate activity returned by the backend. Date is a
// calendar date in YYYY-MM-DD form; URL doubles as the display key.
type Event struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type Question struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Placeholder string `json:"placeholder"`
}

const (
	OnboardingPending  = "pending"
	OnboardingComplete = "complete"
)

// OnboardingStatus is the body of GET /onboarding/start/{identity}.
type OnboardingStatus struct {
	Status    string     `json:"status"`
	Questions []Question `json:"questions"`
}

// ChatReply is the body returned by both /onboarding/submit and /chat.
type ChatReply struct {
	ResponseText string  `json:"response_text"`
	Events       []Event `json:"events,omitempty"`
}
