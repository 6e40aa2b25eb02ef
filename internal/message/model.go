package message

import "time"

const (
	StatusUnread = "unread"
	StatusRead   = "read"
	// StatusReplied is stored by older documents; reads tolerate it but
	// nothing writes it today.
	StatusReplied = "replied"
)

type Message struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string    `bson:"subject,omitempty" json:"subject,omitempty"`
	Body      string    `bson:"message" json:"message"`
	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type CreateRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=100"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Subject string `json:"subject" validate:"max=150"`
	Message string `json:"message" validate:"required,max=2000"`
}
