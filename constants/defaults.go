package constants

const (
	Title = "Encrypted backup transfer over private TCP"

	PROTOCOL_VERSION   = 3       // Current wire protocol version
	DEFAULT_PORT       = 1357    // Default server port
	DEFAULT_DSCP       = 0x0A    // QoS for high throughput
	MAX_SEND_ATTEMPTS  = 3       // Whole-file retries on CRC mismatch
	MAX_PAYLOAD_SIZE   = 1 << 20 // Largest payload a peer will accept
	MAX_TOTAL_PACKETS  = 65535   // Hard cap per transfer (uint16 field)
	MAX_TABLE_ENTRIES  = 1024    // In-flight transfers before backpressure
	REASSEMBLY_TIMEOUT = 120     // Seconds of inactivity before an entry is reaped
	REAPER_INTERVAL    = 15      // Seconds between reaper sweeps
	RESPONSE_TIMEOUT   = 60      // Seconds to wait for the final CRC response
)
