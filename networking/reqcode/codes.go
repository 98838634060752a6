package reqcode

// Request codes sent by clients.
const (
	REGISTER      = 1100 // Register display name, receive client id
	SENDPUBLICKEY = 1101 // Deliver RSA public key, receive wrapped session key
	SENDFILE      = 1103 // One packet of an encrypted file
)

// Response codes sent by the server.
const (
	REGISTEROK    = 2100 // Registration accepted, payload carries client id
	PUBLICKEYACK  = 2102 // Payload carries client id + OAEP-wrapped session key
	FILECRCRESULT = 2103 // Final transfer outcome with server-side checksum
	ERROR         = 3000 // Payload carries error code + human readable text
)
