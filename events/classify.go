package events

import "encoding/json"

// Event type labels derived from the envelope sub-field present in a
// notification. Webhook filters are expressed in these labels.
const (
	TypeMessage = "message"
	TypeReceipt = "receipt"
	TypeTyping  = "typing"
	TypeSync    = "sync"
)

type envelope struct {
	DataMessage    json.RawMessage `json:"dataMessage"`
	ReceiptMessage json.RawMessage `json:"receiptMessage"`
	TypingMessage  json.RawMessage `json:"typingMessage"`
	SyncMessage    json.RawMessage `json:"syncMessage"`
}

type envelopeFrame struct {
	Envelope envelope `json:"envelope"`
	Params   struct {
		Envelope envelope `json:"envelope"`
	} `json:"params"`
}

// Classify maps a notification payload to a coarse event type label. The
// envelope may sit at the top level (a bare receive payload) or under
// params (a full JSON-RPC notification frame). Payloads matching neither
// shape yield "".
func Classify(raw []byte) string {
	var f envelopeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ""
	}
	if t := f.Envelope.classify(); t != "" {
		return t
	}
	return f.Params.Envelope.classify()
}

func (e envelope) classify() string {
	switch {
	case e.DataMessage != nil:
		return TypeMessage
	case e.ReceiptMessage != nil:
		return TypeReceipt
	case e.TypingMessage != nil:
		return TypeTyping
	case e.SyncMessage != nil:
		return TypeSync
	}
	return ""
}
