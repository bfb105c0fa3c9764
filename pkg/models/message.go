package models

import "time"

// TransportMessage is one message as handed over by the source queue.
type TransportMessage struct {
	ID            string            `json:"id"`
	ReceiptToken  string            `json:"receipt_token"`
	Body          []byte            `json:"body"`
	DeliveryCount int               `json:"delivery_count"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
}

// NotificationEnvelope is the pub/sub wrapper around a published message.
type NotificationEnvelope struct {
	TopicID    string            `json:"topic_id"`
	MessageID  string            `json:"message_id,omitempty"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DomainPayload is the business object carried inside an envelope. A nil
// payload means the publisher sent a JSON null.
type DomainPayload map[string]interface{}

func (p DomainPayload) Get(field string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[field]
	return v, ok
}

// TypeTag returns the string value of field and whether it is a non-empty
// string.
func (p DomainPayload) TypeTag(field string) (string, bool) {
	v, ok := p.Get(field)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// PersistenceRecord is a payload ready for the sink. Item[KeyField] always
// equals Key.
type PersistenceRecord struct {
	Key      string                 `json:"key"`
	KeyField string                 `json:"key_field"`
	Item     map[string]interface{} `json:"item"`
}
