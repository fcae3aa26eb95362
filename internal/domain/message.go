package domain

// AdminChannel is the designated receiver id for messages addressed to the
// administrative staff rather than a specific user.
const AdminChannel = "ADMIN"

// Message is a chat message between a user and the admin channel.
// SenderName and SenderRole are denormalized snapshots. Messages are
// immutable once sent. Timestamp is epoch milliseconds.
type Message struct {
	ID         string   `json:"id"`
	SenderID   string   `json:"senderId"`
	SenderName string   `json:"senderName"`
	SenderRole UserRole `json:"senderRole"`
	ReceiverID string   `json:"receiverId"`
	Text       string   `json:"text"`
	Timestamp  int64    `json:"timestamp"`
}

// VisibleTo reports whether the given user may read this message.
// Admins see every message; everyone else only their own traffic.
func (m *Message) VisibleTo(userID string, role UserRole) bool {
	if role == RoleAdmin {
		return true
	}
	return m.SenderID == userID || m.ReceiverID == userID
}
