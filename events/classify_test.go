package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		exp  string
	}{
		{
			name: "data message",
			raw:  `{"envelope":{"source":"+491713920000","dataMessage":{"message":"hi"}}}`,
			exp:  TypeMessage,
		},
		{
			name: "receipt",
			raw:  `{"envelope":{"receiptMessage":{"when":1700000000,"isDelivery":true}}}`,
			exp:  TypeReceipt,
		},
		{
			name: "typing",
			raw:  `{"envelope":{"typingMessage":{"action":"STARTED"}}}`,
			exp:  TypeTyping,
		},
		{
			name: "sync",
			raw:  `{"envelope":{"syncMessage":{"sentMessage":{}}}}`,
			exp:  TypeSync,
		},
		{
			name: "data message wins over sync",
			raw:  `{"envelope":{"dataMessage":{"message":"hi"},"syncMessage":{}}}`,
			exp:  TypeMessage,
		},
		{
			name: "empty envelope",
			raw:  `{"envelope":{}}`,
			exp:  "",
		},
		{
			name: "no envelope",
			raw:  `{"jsonrpc":"2.0","method":"receive","params":{}}`,
			exp:  "",
		},
		{
			name: "envelope nested in a notification frame",
			raw:  `{"jsonrpc":"2.0","method":"receive","params":{"envelope":{"dataMessage":{"message":"hi"}}}}`,
			exp:  TypeMessage,
		},
		{
			name: "nested receipt",
			raw:  `{"jsonrpc":"2.0","method":"receive","params":{"envelope":{"receiptMessage":{}}}}`,
			exp:  TypeReceipt,
		},
		{
			name: "not JSON",
			raw:  `garbage`,
			exp:  "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.exp, Classify([]byte(c.raw)))
		})
	}
}
