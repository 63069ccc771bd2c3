package frame

// Payload types for every tag in the table at spec.md §4.1. These are the
// Go-side shapes frames are Decode()d into and New()'d from; JSON field
// names match the wire format exactly.

// RegisterPayload is carried by RGTR (client to server).
type RegisterPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload is carried by LGIN (client to server).
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusPayload is carried by STAT (server to client). An empty Message
// means success.
type StatusPayload struct {
	Message string `json:"message"`
}

// AddContactPayload is carried by ADDC (client to server).
type AddContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ListContactsReplyPayload is carried by LCRN (server to client).
type ListContactsReplyPayload struct {
	Contacts map[string]string `json:"contacts"`
}

// FileInfo describes a file being offered for transfer.
type FileInfo struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// TransferRequestPayload is carried by FTRP (sender to server).
type TransferRequestPayload struct {
	RecipientEmail string   `json:"recipient_email"`
	FileInfo       FileInfo `json:"file_info"`
}

// TransferRequestsPayload is carried by FTRR (server to recipient), keyed by
// sender email.
type TransferRequestsPayload struct {
	Requests map[string]FileInfo `json:"requests"`
}

// TransferAcceptPayload is carried by FTAR (recipient to server). An empty
// SenderEmail denies every pending request for the recipient.
type TransferAcceptPayload struct {
	SenderEmail string `json:"sender_email"`
}

// TransferExchangePayload is carried by FTEA (server to recipient).
type TransferExchangePayload struct {
	Token string `json:"token"`
}

// TransferSetPortPayload is carried by FTSP (recipient to server), reporting
// the port the recipient's receiver bound.
type TransferSetPortPayload struct {
	Port int `json:"port"`
}

// TransferPortPayload is carried by FTPT (server to sender). An empty Token
// means the recipient declined.
type TransferPortPayload struct {
	Port  int    `json:"port"`
	Token string `json:"token"`
}

// TransferFileInfo describes the file as announced at the start of the P2P
// transfer protocol proper (distinct from FileInfo: it carries a chunk
// count instead of a byte size, and the hash field name matches the
// original wire format's "SHA256" capitalization).
type TransferFileInfo struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	SHA256 string `json:"SHA256"`
}

// TransferFileInfoPayload is carried by FTPF (sender to recipient, P2P
// stream).
type TransferFileInfoPayload struct {
	FileInfo TransferFileInfo `json:"file_info"`
	Token    string           `json:"token"`
}

// TransferChunkPayload is carried by FTPC (sender to recipient, P2P
// stream), one per file chunk.
type TransferChunkPayload struct {
	Chunk string `json:"chunk"` // base64-encoded
}
