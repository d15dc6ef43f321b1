package messaging

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText         Type = "text"
	TypePrescription Type = "prescription"
	TypeSystem       Type = "system"
	TypeAttachment   Type = "attachment"
	TypeImage        Type = "image"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypePrescription, TypeSystem, TypeAttachment, TypeImage:
		return true
	}
	return false
}

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConsultationID uuid.UUID  `json:"consultationId"`
	SenderID       uuid.UUID  `json:"senderId"`
	Content        string     `json:"content"`
	Type           Type       `json:"messageType"`
	Status         Status     `json:"status"`
	AttachmentURL  *string    `json:"attachmentUrl,omitempty"`
	AttachmentName *string    `json:"attachmentName,omitempty"`
	ReplyToID      *uuid.UUID `json:"replyToId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Joined from users for display.
	SenderFirstName string `json:"senderFirstName,omitempty"`
	SenderLastName  string `json:"senderLastName,omitempty"`
	SenderRole      string `json:"senderRole,omitempty"`
}

type SendInput struct {
	Content        string     `json:"content"`
	Type           Type       `json:"messageType"`
	AttachmentURL  string     `json:"attachmentUrl"`
	AttachmentName string     `json:"attachmentName"`
	ReplyToID      *uuid.UUID `json:"replyToId"`
}

// maxContentLength bounds a single message body in characters.
const maxContentLength = 5000
