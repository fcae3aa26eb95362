package dto

// SendMessageRequest payload for the chat. Non-admin senders are forced to
// the admin channel regardless of receiverId.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text" validate:"required"`
}
