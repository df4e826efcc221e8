package packet

import "fmt"

// ReasonCode is a single-byte MQTT v5.0 reason code (or v3.1.1 CONNACK
// return code) paired with a human-readable reason. It implements error
// so decode/assembly failures can be returned and compared directly
// against the vars below.
type ReasonCode struct {
	Code   uint8
	Reason string
}

func (rc ReasonCode) Error() string {
	return fmt.Sprintf("%d:%s", rc.Code, rc.Reason)
}

// v3.1.1 CONNACK return codes (section 3.2.2.3).
var (
	Err3UnsupportedProtocolVersion = ReasonCode{Code: 0x01, Reason: "unsupported protocol version"}
	Err3ClientIdentifierNotValid  = ReasonCode{Code: 0x02, Reason: "client identifier not valid"}
	Err3ServerUnavailable          = ReasonCode{Code: 0x03, Reason: "server unavailable"}
	ErrMalformedUsernameOrPassword = ReasonCode{Code: 0x04, Reason: "malformed username or password"}
	Err3NotAuthorized              = ReasonCode{Code: 0x05, Reason: "not authorized"}
)

// v5.0 success / informational reason codes (table in section 4.13, §6 of
// the wire-format spec this package implements).
var (
	CodeSuccess                 = ReasonCode{Code: 0x00, Reason: "success"}
	CodeDisconnect               = ReasonCode{Code: 0x00, Reason: "normal disconnection"}
	CodeGrantedQos0              = ReasonCode{Code: 0x00, Reason: "granted qos 0"}
	CodeGrantedQos1              = ReasonCode{Code: 0x01, Reason: "granted qos 1"}
	CodeGrantedQos2              = ReasonCode{Code: 0x02, Reason: "granted qos 2"}
	CodeDisconnectWillMessage    = ReasonCode{Code: 0x04, Reason: "disconnect with will message"}
	CodeNoMatchingSubscribers    = ReasonCode{Code: 0x10, Reason: "no matching subscribers"}
	CodeNoSubscriptionExisted    = ReasonCode{Code: 0x11, Reason: "no subscription existed"}
	CodeContinueAuthentication   = ReasonCode{Code: 0x18, Reason: "continue authentication"}
	CodeReAuthenticate           = ReasonCode{Code: 0x19, Reason: "re-authenticate"}
)

// v5.0 error reason codes, 0x80-0xA2.
var (
	ErrUnspecifiedError   = ReasonCode{Code: 0x80, Reason: "unspecified error"}
	ErrMalformedPacket    = ReasonCode{Code: 0x81, Reason: "malformed packet"}

	ErrMalformedProtocolName          = ReasonCode{Code: 0x81, Reason: "malformed packet: protocol name"}
	ErrMalformedProtocolVersion       = ReasonCode{Code: 0x81, Reason: "malformed packet: protocol version"}
	ErrMalformedFlags                 = ReasonCode{Code: 0x81, Reason: "malformed packet: flags"}
	ErrMalformedKeepalive              = ReasonCode{Code: 0x81, Reason: "malformed packet: keepalive"}
	ErrMalformedPacketID               = ReasonCode{Code: 0x81, Reason: "malformed packet: packet identifier"}
	ErrMalformedTopic                  = ReasonCode{Code: 0x81, Reason: "malformed packet: topic"}
	ErrMalformedWillTopic              = ReasonCode{Code: 0x81, Reason: "malformed packet: will topic"}
	ErrMalformedWillPayload            = ReasonCode{Code: 0x81, Reason: "malformed packet: will message"}
	ErrMalformedUsername               = ReasonCode{Code: 0x81, Reason: "malformed packet: username"}
	ErrMalformedPassword               = ReasonCode{Code: 0x81, Reason: "malformed packet: password"}
	ErrMalformedQos                    = ReasonCode{Code: 0x81, Reason: "malformed packet: qos"}
	ErrMalformedInvalidUTF8            = ReasonCode{Code: 0x81, Reason: "malformed packet: invalid utf-8 string"}
	ErrMalformedVariableByteInteger    = ReasonCode{Code: 0x81, Reason: "malformed packet: variable byte integer out of range"}
	ErrMalformedBadProperty            = ReasonCode{Code: 0x81, Reason: "malformed packet: unknown property"}
	ErrMalformedProperties             = ReasonCode{Code: 0x81, Reason: "malformed packet: properties"}
	ErrMalformedWillProperties         = ReasonCode{Code: 0x81, Reason: "malformed packet: will properties"}
	ErrMalformedReasonCode             = ReasonCode{Code: 0x81, Reason: "malformed packet: reason code"}
	ErrMalformedRemainingLength        = ReasonCode{Code: 0x81, Reason: "malformed packet: remaining length"}

	ErrProtocolErr       = ReasonCode{Code: 0x82, Reason: "protocol error"}
	ErrProtocolViolation = ReasonCode{Code: 0x82, Reason: "protocol violation"}

	ErrProtocolViolationProtocolName          = ReasonCode{Code: 0x82, Reason: "protocol violation: protocol name"}
	ErrProtocolViolationProtocolVersion       = ReasonCode{Code: 0x82, Reason: "protocol violation: protocol version"}
	ErrProtocolViolationReservedBit           = ReasonCode{Code: 0x82, Reason: "protocol violation: reserved bit not 0"}
	ErrProtocolViolationFlagNoUsername        = ReasonCode{Code: 0x82, Reason: "protocol violation: username flag set but no value"}
	ErrProtocolViolationFlagNoPassword        = ReasonCode{Code: 0x82, Reason: "protocol violation: password flag set but no value"}
	ErrProtocolViolationNoPacketID            = ReasonCode{Code: 0x82, Reason: "protocol violation: missing packet id"}
	ErrProtocolViolationQosOutOfRange         = ReasonCode{Code: 0x82, Reason: "protocol violation: qos out of range"}
	ErrProtocolViolationWillFlagNoPayload     = ReasonCode{Code: 0x82, Reason: "protocol violation: will flag no payload"}
	ErrProtocolViolationSurplusWildcard       = ReasonCode{Code: 0x82, Reason: "protocol violation: topic contains wildcards"}
	ErrProtocolViolationInvalidTopic          = ReasonCode{Code: 0x82, Reason: "protocol violation: invalid topic"}
	ErrProtocolViolationNoFilters             = ReasonCode{Code: 0x82, Reason: "protocol violation: must contain at least one filter"}
	ErrProtocolViolationPacketIDZero          = ReasonCode{Code: 0x82, Reason: "protocol violation: packet identifier must be non-zero"}

	ErrImplementationSpecificError = ReasonCode{Code: 0x83, Reason: "implementation specific error"}
	ErrRejectPacket                = ReasonCode{Code: 0x83, Reason: "packet rejected"}

	ErrUnsupportedProtocolVersion = ReasonCode{Code: 0x84, Reason: "unsupported protocol version"}
	ErrClientIdentifierNotValid   = ReasonCode{Code: 0x85, Reason: "client identifier not valid"}
	ErrBadUsernameOrPassword      = ReasonCode{Code: 0x86, Reason: "bad username or password"}
	ErrNotAuthorized              = ReasonCode{Code: 0x87, Reason: "not authorized"}
	ErrServerUnavailable          = ReasonCode{Code: 0x88, Reason: "server unavailable"}
	ErrServerBusy                 = ReasonCode{Code: 0x89, Reason: "server busy"}
	ErrBanned                     = ReasonCode{Code: 0x8A, Reason: "banned"}
	ErrServerShuttingDown         = ReasonCode{Code: 0x8B, Reason: "server shutting down"}
	ErrBadAuthenticationMethod    = ReasonCode{Code: 0x8C, Reason: "bad authentication method"}
	ErrKeepAliveTimeout           = ReasonCode{Code: 0x8D, Reason: "keep alive timeout"}
	ErrSessionTakenOver           = ReasonCode{Code: 0x8E, Reason: "session taken over"}
	ErrTopicFilterInvalid         = ReasonCode{Code: 0x8F, Reason: "topic filter invalid"}

	ErrTopicNameInvalid                     = ReasonCode{Code: 0x90, Reason: "topic name invalid"}
	ErrPacketIdentifierInUse                = ReasonCode{Code: 0x91, Reason: "packet identifier in use"}
	ErrPacketIdentifierNotFound              = ReasonCode{Code: 0x92, Reason: "packet identifier not found"}
	ErrReceiveMaximum                        = ReasonCode{Code: 0x93, Reason: "receive maximum exceeded"}
	ErrTopicAliasInvalid                     = ReasonCode{Code: 0x94, Reason: "topic alias invalid"}
	ErrPacketTooLarge                        = ReasonCode{Code: 0x95, Reason: "packet too large"}
	ErrMessageRateTooHigh                    = ReasonCode{Code: 0x96, Reason: "message rate too high"}
	ErrQuotaExceeded                         = ReasonCode{Code: 0x97, Reason: "quota exceeded"}
	ErrAdministrativeAction                  = ReasonCode{Code: 0x98, Reason: "administrative action"}
	ErrPayloadFormatInvalid                  = ReasonCode{Code: 0x99, Reason: "payload format invalid"}
	ErrRetainNotSupported                    = ReasonCode{Code: 0x9A, Reason: "retain not supported"}
	ErrQosNotSupported                       = ReasonCode{Code: 0x9B, Reason: "qos not supported"}
	ErrUseAnotherServer                      = ReasonCode{Code: 0x9C, Reason: "use another server"}
	ErrServerMoved                           = ReasonCode{Code: 0x9D, Reason: "server moved"}
	ErrSharedSubscriptionsNotSupported       = ReasonCode{Code: 0x9E, Reason: "shared subscriptions not supported"}
	ErrConnectionRateExceeded                = ReasonCode{Code: 0x9F, Reason: "connection rate exceeded"}
	ErrMaxConnectTime                        = ReasonCode{Code: 0xA0, Reason: "maximum connect time"}
	ErrSubscriptionIdentifiersNotSupported    = ReasonCode{Code: 0xA1, Reason: "subscription identifiers not supported"}
	ErrWildcardSubscriptionsNotSupported      = ReasonCode{Code: 0xA2, Reason: "wildcard subscriptions not supported"}
)

// ErrProtocolError is a second name for ErrProtocolErr.
var ErrProtocolError = ErrProtocolErr

// Decode-time error kinds that don't map onto a wire reason code byte.
// These are returned by the frame reader and primitive codecs (section
// 4.1/4.4); callers type-switch or errors.Is against them.
var (
	ErrPayloadRequired         = fmt.Errorf("packet: payload required")
	ErrPayloadSizeLimitExceeded = fmt.Errorf("packet: remaining length exceeds max payload size")
	ErrBoundaryCrossed          = fmt.Errorf("packet: declared length crosses buffer boundary")
	ErrUnexpectedEof            = fmt.Errorf("packet: unexpected eof, need more bytes")
	ErrTopicNotUtf8              = fmt.Errorf("packet: string is not valid utf-8")
	ErrInvalidProperty           = fmt.Errorf("packet: invalid property for this packet type")
	ErrPacketIDZero              = fmt.Errorf("packet: packet identifier must be non-zero for this qos")
)

// ShortRead is returned by the frame reader when the supplied buffer does
// not yet hold a complete packet. ReserveHint is the number of additional
// bytes the caller should make room for before reading more off the wire.
type ShortRead struct {
	ReserveHint int
}

func (e *ShortRead) Error() string { return ErrUnexpectedEof.Error() }

func (e *ShortRead) Unwrap() error { return ErrUnexpectedEof }
