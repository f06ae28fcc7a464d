package network

// Message IDs for the binary packet protocol. 1xx lobby, 2xx in-game
// actions, 3xx server-to-client.
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103
	MsgTypeStartGame  = 104
	MsgTypeReconnect  = 105

	MsgTypePlayCard        = 201
	MsgTypeSelectTarget    = 202
	MsgTypeDrawCard        = 203
	MsgTypeHexResponse     = 204
	MsgTypeCounterResponse = 205
	MsgTypeDarkVisionDone  = 206
	MsgTypePairSteal       = 207
	MsgTypeReinsertDemon   = 208

	MsgTypeRoomCreated = 301
	MsgTypeLobbyUpdate = 302
	MsgTypeGameState   = 303
	MsgTypeError       = 304
	MsgTypeEvent       = 305
)
