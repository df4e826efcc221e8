package packet

// Property identifiers, MQTT v5.0 section 2.2.2.2.
const (
	propPayloadFormatIndicator     = 1
	propMessageExpiryInterval      = 2
	propContentType                = 3
	propResponseTopic              = 8
	propCorrelationData            = 9
	propSubscriptionIdentifier     = 11
	propSessionExpiryInterval      = 17
	propAssignedClientIdentifier   = 18
	propServerKeepAlive            = 19
	propAuthenticationMethod       = 21
	propAuthenticationData         = 22
	propRequestProblemInformation  = 23
	propWillDelayInterval          = 24
	propRequestResponseInformation = 25
	propResponseInformation        = 26
	propServerReference            = 28
	propReasonString               = 31
	propReceiveMaximum              = 33
	propTopicAliasMaximum           = 34
	propTopicAlias                  = 35
	propMaximumQos                  = 36
	propRetainAvailable             = 37
	propUserProperty                = 38
	propMaximumPacketSize           = 39
	propWildcardSubscriptionAvail   = 40
	propSubscriptionIDAvailable     = 41
	propSharedSubscriptionAvailable = 42
)

// Presence bits, one per optional field in Properties. user_property is
// the only natively repeatable property (§9 design note); it is tracked
// by len(UserProperties) > 0 rather than a presence bit.
const (
	PresPayloadFormatIndicator uint32 = 1 << iota
	PresMessageExpiryInterval
	PresContentType
	PresResponseTopic
	PresCorrelationData
	PresSubscriptionIdentifier
	PresSessionExpiryInterval
	PresAssignedClientIdentifier
	PresServerKeepAlive
	PresAuthenticationMethod
	PresAuthenticationData
	PresRequestProblemInformation
	PresWillDelayInterval
	PresRequestResponseInformation
	PresResponseInformation
	PresServerReference
	PresReasonString
	PresReceiveMaximum
	PresTopicAliasMaximum
	PresTopicAlias
	PresMaximumQos
	PresRetainAvailable
	PresMaximumPacketSize
	PresWildcardSubscriptionAvail
	PresSubscriptionIDAvailable
	PresSharedSubscriptionAvailable
)

// UserProperty is a single name/value pair; Properties.UserProperties may
// hold any number of them.
type UserProperty struct {
	Name  string
	Value string
}

// Properties is a flat record with one optional field per identifier in
// the v5.0 property table, as required by §4.2: most properties are
// non-repeatable, so a struct of optionals (gated by a presence bitmask)
// is a truer model of the wire format than per-property wrapper types.
type Properties struct {
	Presence uint32

	PayloadFormatIndicator     uint8
	MessageExpiryInterval      uint32
	ContentType                string
	ResponseTopic              string
	CorrelationData            []byte
	SubscriptionIdentifier     uint32
	SessionExpiryInterval      uint32
	AssignedClientIdentifier   string
	ServerKeepAlive            uint16
	AuthenticationMethod       string
	AuthenticationData         []byte
	RequestProblemInformation  uint8
	WillDelayInterval          uint32
	RequestResponseInformation uint8
	ResponseInformation        string
	ServerReference            string
	ReasonString               string
	ReceiveMaximum              uint16
	TopicAliasMaximum           uint16
	TopicAlias                  uint16
	MaximumQos                  uint8
	RetainAvailable             uint8
	MaximumPacketSize           uint32
	WildcardSubscriptionAvail   uint8
	SubscriptionIDAvailable     uint8
	SharedSubscriptionAvailable uint8

	UserProperties []UserProperty
}

func (p *Properties) has(bit uint32) bool { return p.Presence&bit != 0 }
func (p *Properties) set(bit uint32)      { p.Presence |= bit }

// byteLen returns the encoded size of the property block, excluding the
// leading variable-byte length prefix itself.
func (p *Properties) byteLen() int {
	n := 0
	add := func(k int) { n += k }
	if p.has(PresPayloadFormatIndicator) {
		add(2)
	}
	if p.has(PresMessageExpiryInterval) {
		add(5)
	}
	if p.ContentType != "" {
		add(3 + len(p.ContentType))
	}
	if p.ResponseTopic != "" {
		add(3 + len(p.ResponseTopic))
	}
	if p.has(PresCorrelationData) {
		add(3 + len(p.CorrelationData))
	}
	if p.has(PresSubscriptionIdentifier) {
		add(1 + len(EncodeVarByte(p.SubscriptionIdentifier)))
	}
	if p.has(PresSessionExpiryInterval) {
		add(5)
	}
	if p.AssignedClientIdentifier != "" {
		add(3 + len(p.AssignedClientIdentifier))
	}
	if p.has(PresServerKeepAlive) {
		add(3)
	}
	if p.AuthenticationMethod != "" {
		add(3 + len(p.AuthenticationMethod))
	}
	if p.has(PresAuthenticationData) {
		add(3 + len(p.AuthenticationData))
	}
	if p.has(PresRequestProblemInformation) {
		add(2)
	}
	if p.has(PresWillDelayInterval) {
		add(5)
	}
	if p.has(PresRequestResponseInformation) {
		add(2)
	}
	if p.ResponseInformation != "" {
		add(3 + len(p.ResponseInformation))
	}
	if p.ServerReference != "" {
		add(3 + len(p.ServerReference))
	}
	if p.ReasonString != "" {
		add(3 + len(p.ReasonString))
	}
	if p.has(PresReceiveMaximum) {
		add(3)
	}
	if p.has(PresTopicAliasMaximum) {
		add(3)
	}
	if p.has(PresTopicAlias) {
		add(3)
	}
	if p.has(PresMaximumQos) {
		add(2)
	}
	if p.has(PresRetainAvailable) {
		add(2)
	}
	if p.has(PresMaximumPacketSize) {
		add(5)
	}
	if p.has(PresWildcardSubscriptionAvail) {
		add(2)
	}
	if p.has(PresSubscriptionIDAvailable) {
		add(2)
	}
	if p.has(PresSharedSubscriptionAvailable) {
		add(2)
	}
	for _, up := range p.UserProperties {
		add(5 + len(up.Name) + len(up.Value))
	}
	return n
}

// Encode emits the variable-byte length prefix followed by the property
// block, in ascending identifier order — the order the reference decoder
// below expects, and the order every testable-property invariant in §8
// assumes.
func (p *Properties) Encode() []byte {
	body := p.encodeBody()
	out := EncodeVarByte(uint32(len(body)))
	return append(out, body...)
}

func (p *Properties) encodeBody() []byte {
	var b []byte
	if p.has(PresPayloadFormatIndicator) {
		b = append(b, propPayloadFormatIndicator, p.PayloadFormatIndicator)
	}
	if p.has(PresMessageExpiryInterval) {
		b = append(b, propMessageExpiryInterval)
		b = append(b, encodeUint32(p.MessageExpiryInterval)...)
	}
	if p.ContentType != "" {
		b = append(b, propContentType)
		b = append(b, encodeString(p.ContentType)...)
	}
	if p.ResponseTopic != "" {
		b = append(b, propResponseTopic)
		b = append(b, encodeString(p.ResponseTopic)...)
	}
	if p.has(PresCorrelationData) {
		b = append(b, propCorrelationData)
		b = append(b, encodeBinary(p.CorrelationData)...)
	}
	if p.has(PresSubscriptionIdentifier) {
		b = append(b, propSubscriptionIdentifier)
		b = append(b, EncodeVarByte(p.SubscriptionIdentifier)...)
	}
	if p.has(PresSessionExpiryInterval) {
		b = append(b, propSessionExpiryInterval)
		b = append(b, encodeUint32(p.SessionExpiryInterval)...)
	}
	if p.AssignedClientIdentifier != "" {
		b = append(b, propAssignedClientIdentifier)
		b = append(b, encodeString(p.AssignedClientIdentifier)...)
	}
	if p.has(PresServerKeepAlive) {
		b = append(b, propServerKeepAlive)
		b = append(b, encodeUint16(p.ServerKeepAlive)...)
	}
	if p.AuthenticationMethod != "" {
		b = append(b, propAuthenticationMethod)
		b = append(b, encodeString(p.AuthenticationMethod)...)
	}
	if p.has(PresAuthenticationData) {
		b = append(b, propAuthenticationData)
		b = append(b, encodeBinary(p.AuthenticationData)...)
	}
	if p.has(PresRequestProblemInformation) {
		b = append(b, propRequestProblemInformation, p.RequestProblemInformation)
	}
	if p.has(PresWillDelayInterval) {
		b = append(b, propWillDelayInterval)
		b = append(b, encodeUint32(p.WillDelayInterval)...)
	}
	if p.has(PresRequestResponseInformation) {
		b = append(b, propRequestResponseInformation, p.RequestResponseInformation)
	}
	if p.ResponseInformation != "" {
		b = append(b, propResponseInformation)
		b = append(b, encodeString(p.ResponseInformation)...)
	}
	if p.ServerReference != "" {
		b = append(b, propServerReference)
		b = append(b, encodeString(p.ServerReference)...)
	}
	if p.ReasonString != "" {
		b = append(b, propReasonString)
		b = append(b, encodeString(p.ReasonString)...)
	}
	if p.has(PresReceiveMaximum) {
		b = append(b, propReceiveMaximum)
		b = append(b, encodeUint16(p.ReceiveMaximum)...)
	}
	if p.has(PresTopicAliasMaximum) {
		b = append(b, propTopicAliasMaximum)
		b = append(b, encodeUint16(p.TopicAliasMaximum)...)
	}
	if p.has(PresTopicAlias) {
		b = append(b, propTopicAlias)
		b = append(b, encodeUint16(p.TopicAlias)...)
	}
	if p.has(PresMaximumQos) {
		b = append(b, propMaximumQos, p.MaximumQos)
	}
	if p.has(PresRetainAvailable) {
		b = append(b, propRetainAvailable, p.RetainAvailable)
	}
	for _, up := range p.UserProperties {
		b = append(b, propUserProperty)
		b = append(b, encodeStringPair(up.Name, up.Value)...)
	}
	if p.has(PresMaximumPacketSize) {
		b = append(b, propMaximumPacketSize)
		b = append(b, encodeUint32(p.MaximumPacketSize)...)
	}
	if p.has(PresWildcardSubscriptionAvail) {
		b = append(b, propWildcardSubscriptionAvail, p.WildcardSubscriptionAvail)
	}
	if p.has(PresSubscriptionIDAvailable) {
		b = append(b, propSubscriptionIDAvailable, p.SubscriptionIDAvailable)
	}
	if p.has(PresSharedSubscriptionAvailable) {
		b = append(b, propSharedSubscriptionAvailable, p.SharedSubscriptionAvailable)
	}
	return b
}

// DecodeProperties reads a variable-byte length L followed by L bytes of
// property identifiers and typed values, per the §4.2 algorithm: L=0
// means no properties at all (a zero-length block, not absence of the
// length prefix itself). Returns the number of bytes consumed, including
// the length prefix.
func DecodeProperties(buf []byte) (*Properties, int, error) {
	l, n, err := DecodeVarByte(buf)
	if err != nil {
		return nil, 0, err
	}
	total := n
	if l == 0 {
		return &Properties{}, total, nil
	}
	if len(buf) < total+int(l) {
		return nil, 0, ErrBoundaryCrossed
	}
	body := buf[total : total+int(l)]
	p := &Properties{}
	remaining := body
	for len(remaining) > 0 {
		id := remaining[0]
		remaining = remaining[1:]
		consumed, err := p.decodeOne(id, remaining)
		if err != nil {
			return nil, 0, err
		}
		remaining = remaining[consumed:]
	}
	return p, total + int(l), nil
}

func (p *Properties) decodeOne(id byte, buf []byte) (int, error) {
	switch id {
	case propPayloadFormatIndicator:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.PayloadFormatIndicator = buf[0]
		p.set(PresPayloadFormatIndicator)
		return 1, nil
	case propMessageExpiryInterval:
		v, n, err := DecodeUint32(buf)
		if err != nil {
			return 0, err
		}
		p.MessageExpiryInterval = v
		p.set(PresMessageExpiryInterval)
		return n, nil
	case propContentType:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.ContentType = v
		p.set(PresContentType)
		return n, nil
	case propResponseTopic:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.ResponseTopic = v
		p.set(PresResponseTopic)
		return n, nil
	case propCorrelationData:
		v, n, err := DecodeBinary(buf)
		if err != nil {
			return 0, err
		}
		p.CorrelationData = v
		p.set(PresCorrelationData)
		return n, nil
	case propSubscriptionIdentifier:
		v, n, err := DecodeVarByte(buf)
		if err != nil {
			return 0, err
		}
		p.SubscriptionIdentifier = v
		p.set(PresSubscriptionIdentifier)
		return n, nil
	case propSessionExpiryInterval:
		v, n, err := DecodeUint32(buf)
		if err != nil {
			return 0, err
		}
		p.SessionExpiryInterval = v
		p.set(PresSessionExpiryInterval)
		return n, nil
	case propAssignedClientIdentifier:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.AssignedClientIdentifier = v
		p.set(PresAssignedClientIdentifier)
		return n, nil
	case propServerKeepAlive:
		v, n, err := DecodeUint16(buf)
		if err != nil {
			return 0, err
		}
		p.ServerKeepAlive = v
		p.set(PresServerKeepAlive)
		return n, nil
	case propAuthenticationMethod:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.AuthenticationMethod = v
		p.set(PresAuthenticationMethod)
		return n, nil
	case propAuthenticationData:
		v, n, err := DecodeBinary(buf)
		if err != nil {
			return 0, err
		}
		p.AuthenticationData = v
		p.set(PresAuthenticationData)
		return n, nil
	case propRequestProblemInformation:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.RequestProblemInformation = buf[0]
		p.set(PresRequestProblemInformation)
		return 1, nil
	case propWillDelayInterval:
		v, n, err := DecodeUint32(buf)
		if err != nil {
			return 0, err
		}
		p.WillDelayInterval = v
		p.set(PresWillDelayInterval)
		return n, nil
	case propRequestResponseInformation:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.RequestResponseInformation = buf[0]
		p.set(PresRequestResponseInformation)
		return 1, nil
	case propResponseInformation:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.ResponseInformation = v
		p.set(PresResponseInformation)
		return n, nil
	case propServerReference:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.ServerReference = v
		p.set(PresServerReference)
		return n, nil
	case propReasonString:
		v, n, err := DecodeString(buf)
		if err != nil {
			return 0, err
		}
		p.ReasonString = v
		p.set(PresReasonString)
		return n, nil
	case propReceiveMaximum:
		v, n, err := DecodeUint16(buf)
		if err != nil {
			return 0, err
		}
		p.ReceiveMaximum = v
		p.set(PresReceiveMaximum)
		return n, nil
	case propTopicAliasMaximum:
		v, n, err := DecodeUint16(buf)
		if err != nil {
			return 0, err
		}
		p.TopicAliasMaximum = v
		p.set(PresTopicAliasMaximum)
		return n, nil
	case propTopicAlias:
		v, n, err := DecodeUint16(buf)
		if err != nil {
			return 0, err
		}
		p.TopicAlias = v
		p.set(PresTopicAlias)
		return n, nil
	case propMaximumQos:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.MaximumQos = buf[0]
		p.set(PresMaximumQos)
		return 1, nil
	case propRetainAvailable:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.RetainAvailable = buf[0]
		p.set(PresRetainAvailable)
		return 1, nil
	case propUserProperty:
		name, value, n, err := DecodeStringPair(buf)
		if err != nil {
			return 0, err
		}
		p.UserProperties = append(p.UserProperties, UserProperty{Name: name, Value: value})
		return n, nil
	case propMaximumPacketSize:
		v, n, err := DecodeUint32(buf)
		if err != nil {
			return 0, err
		}
		p.MaximumPacketSize = v
		p.set(PresMaximumPacketSize)
		return n, nil
	case propWildcardSubscriptionAvail:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.WildcardSubscriptionAvail = buf[0]
		p.set(PresWildcardSubscriptionAvail)
		return 1, nil
	case propSubscriptionIDAvailable:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.SubscriptionIDAvailable = buf[0]
		p.set(PresSubscriptionIDAvailable)
		return 1, nil
	case propSharedSubscriptionAvailable:
		if len(buf) < 1 {
			return 0, ErrBoundaryCrossed
		}
		p.SharedSubscriptionAvailable = buf[0]
		p.set(PresSharedSubscriptionAvailable)
		return 1, nil
	default:
		return 0, ErrInvalidProperty
	}
}
