package types

type MsgType string

const (
	MsgTypeHeartbeatResponse MsgType = "heartbeat_response"
	MsgTypeHeartbeat         MsgType = "heartbeat"
	MsgTypeConnectionAck     MsgType = "connection_ack"
	MsgTypeRequest           MsgType = "request"
	MsgTypeResponse          MsgType = "response"
)

// Op names a service operation carried in a request.
type Op string

const (
	OpLogin                     Op = "login"
	OpLogout                    Op = "logout"
	OpCreateAccount             Op = "create_account"
	OpRetrieveAccountCharacters Op = "retrieve_account_characters"
	OpRetrieveAllCharacters     Op = "retrieve_all_characters"
	OpAddCharacter              Op = "add_character"
	OpUpdateCharacters          Op = "update_characters"
	OpUpdateCharacterLevels     Op = "update_character_levels"
	OpDeleteCharacter           Op = "delete_character"
)

// Code classifies a failed response.
type Code string

const (
	CodeInvalidArgument    Code = "invalid_argument"
	CodeUnauthenticated    Code = "unauthenticated"
	CodePermissionDenied   Code = "permission_denied"
	CodeAlreadyExists      Code = "already_exists"
	CodeNotFound           Code = "not_found"
	CodeFailedPrecondition Code = "failed_precondition"
	CodeResourceExhausted  Code = "resource_exhausted"
	CodeInternal           Code = "internal"
)
