package domain

import "time"

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPhone Channel = "PHONE"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPhone:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// Communication is the outbox record written with the SENT transition and updated once
// the dispatcher reports a delivery status.
type Communication struct {
	ID             string         `json:"id"`
	OfferID        string         `json:"offer_id"`
	Channel        Channel        `json:"channel"`
	Recipient      string         `json:"recipient"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Message is what a dispatcher delivers. Attachments are optional (offer letter PDF).
type Message struct {
	OfferID       string
	Recipient     string
	RecipientName string
	Subject       string
	Body          string
	Attachments   []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}
