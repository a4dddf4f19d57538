package domain

import "time"

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation history
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationSession holds the in-memory history of one user
type ConversationSession struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Turns       []Turn    `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is an inbound chat message
type Message struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Body        string `json:"message"`
}

// Reply kinds
const (
	ReplyGreeting = "greeting"
	ReplyFarewell = "farewell"
	ReplyAnswer   = "answer"
)

// Reply is the outbound answer to a Message
type Reply struct {
	Kind    string           `json:"kind"`
	Text    string           `json:"text"`
	Sources []RetrievedChunk `json:"sources,omitempty"`
	// Failed is set when the language model could not be reached.
	Failed bool `json:"failed,omitempty"`
}

// SearchRequest is the request for a retrieval-only search
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopN  int    `json:"top_n,omitempty"`
}

// SearchResponse is the response for a retrieval-only search
type SearchResponse struct {
	Keywords []string         `json:"keywords"`
	Results  []RetrievedChunk `json:"results"`
}

// Stats represents system statistics
type Stats struct {
	Catalog        CatalogStats `json:"catalog"`
	IndexedChunks  int          `json:"indexed_chunks"`
	ActiveSessions int          `json:"active_sessions"`
}
