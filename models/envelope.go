package models

// Envelope is the common wire-message shape exchanged over the push channel.
// Every message, in either direction, is one JSON-encoded Envelope.
//
// ID is unique per envelope instance. Correlated responses echo the ID of
// the request they answer (a "force_sync" request and its "sync_data" reply
// share one ID), which is the only request/response correlation available on
// the push channel.
type Envelope struct {
	// Type selects the dispatch branch on the receiving side.
	// See the Msg* constants for recognized values.
	Type string `json:"type"`

	// Payload is the message body; its shape depends on Type.
	Payload any `json:"payload,omitempty"`

	// Timestamp is the sender's wall clock at creation, Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Source identifies which side produced the envelope.
	Source string `json:"source"`

	// ID uniquely identifies this envelope and correlates replies.
	ID string `json:"id"`
}

// Envelope sources.
const (
	SourceClient = "client"
	SourceServer = "server"
)

// Recognized envelope types.
const (
	MsgHeartbeat         = "heartbeat"
	MsgHeartbeatAck      = "heartbeat_ack"
	MsgSubscribe         = "subscribe"
	MsgUnsubscribe       = "unsubscribe"
	MsgSubscriptionAck   = "subscription_ack"
	MsgUnsubscriptionAck = "unsubscription_ack"
	MsgForceSync         = "force_sync"
	MsgSyncData          = "sync_data"
	MsgDataUpdate        = "data_update"
	MsgDataUpdated       = "data_updated"
	MsgUpdateAck         = "update_ack"
	MsgConnected         = "connected"
	MsgError             = "error"
)

// SubscriptionPayload is the payload of subscribe/unsubscribe requests and
// their acknowledgements. On requests Topics lists the topics to add or
// remove; on acks it carries the connection's resulting subscription set.
type SubscriptionPayload struct {
	Topics []string `json:"topics"`
}

// ConnectedPayload is the payload of the server's initial "connected"
// envelope and carries the identifier the registry assigned to the socket.
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// HeartbeatAckPayload echoes the timestamp of the heartbeat it answers so
// the client can measure the round trip.
type HeartbeatAckPayload struct {
	EchoTimestamp int64 `json:"echo_timestamp"`
}
