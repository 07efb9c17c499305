package sstp

import "time"

// sstpPacketType is the 2-byte Type field of an SSTP packet header.
type sstpPacketType uint16

const (
	sstpPacketTypeData    sstpPacketType = 0x1000
	sstpPacketTypeControl sstpPacketType = 0x1001
)

// sstpMsgType is the 2-byte Message Type field of an SSTP control packet.
type sstpMsgType uint16

const (
	sstpMsgTypeCallConnectRequest  sstpMsgType = 1
	sstpMsgTypeCallConnectAck      sstpMsgType = 2
	sstpMsgTypeCallConnectNak      sstpMsgType = 3
	sstpMsgTypeCallConnected       sstpMsgType = 4
	sstpMsgTypeCallAbort           sstpMsgType = 5
	sstpMsgTypeCallDisconnect      sstpMsgType = 6
	sstpMsgTypeCallDisconnectAck   sstpMsgType = 7
	sstpMsgTypeEchoRequest         sstpMsgType = 8
	sstpMsgTypeEchoResponse        sstpMsgType = 9
)

func (t sstpMsgType) String() string {
	switch t {
	case sstpMsgTypeCallConnectRequest:
		return "Call-Connect-Request"
	case sstpMsgTypeCallConnectAck:
		return "Call-Connect-Ack"
	case sstpMsgTypeCallConnectNak:
		return "Call-Connect-Nak"
	case sstpMsgTypeCallConnected:
		return "Call-Connected"
	case sstpMsgTypeCallAbort:
		return "Call-Abort"
	case sstpMsgTypeCallDisconnect:
		return "Call-Disconnect"
	case sstpMsgTypeCallDisconnectAck:
		return "Call-Disconnect-Ack"
	case sstpMsgTypeEchoRequest:
		return "Echo-Request"
	case sstpMsgTypeEchoResponse:
		return "Echo-Response"
	}
	return "unknown-sstp-msg-type"
}

// sstpAttrID is the 1-byte Attribute ID field of an SSTP attribute header.
type sstpAttrID uint8

const (
	sstpAttrIDEncapsulatedProtocolID sstpAttrID = 1
	sstpAttrIDStatusInfo             sstpAttrID = 2
	sstpAttrIDCryptoBinding          sstpAttrID = 3
	sstpAttrIDCryptoBindingRequest   sstpAttrID = 4
)

func (id sstpAttrID) String() string {
	switch id {
	case sstpAttrIDEncapsulatedProtocolID:
		return "Encapsulated-Protocol-Id"
	case sstpAttrIDStatusInfo:
		return "Status-Info"
	case sstpAttrIDCryptoBinding:
		return "Crypto-Binding"
	case sstpAttrIDCryptoBindingRequest:
		return "Crypto-Binding-Request"
	}
	return "unknown-sstp-attribute"
}

// encapsulatedProtocolPPP is the only legal value for the
// Encapsulated-Protocol-Id attribute.
const encapsulatedProtocolPPP uint16 = 1

// hashProtocol identifies the digest algorithm used by the crypto-binding.
type hashProtocol uint8

const (
	hashProtocolNone   hashProtocol = 0
	hashProtocolSHA1   hashProtocol = 1
	hashProtocolSHA256 hashProtocol = 2
)

// Bitmask values carried by the Crypto-Binding-Request attribute.
const (
	hashProtocolBitmaskSHA1   uint8 = 1 << 0
	hashProtocolBitmaskSHA256 uint8 = 1 << 1
)

// pppProtocol is the 2-byte PPP protocol number carried after the HDLC
// header in every SSTP DATA packet.
type pppProtocol uint16

const (
	pppProtocolIPv4   pppProtocol = 0x0021
	pppProtocolIPv6   pppProtocol = 0x0057
	pppProtocolLCP    pppProtocol = 0xC021
	pppProtocolPAP    pppProtocol = 0xC023
	pppProtocolCHAP   pppProtocol = 0xC223
	pppProtocolEAP    pppProtocol = 0xC227
	pppProtocolIPCP   pppProtocol = 0x8021
	pppProtocolIPv6CP pppProtocol = 0x8057
)

func (p pppProtocol) String() string {
	switch p {
	case pppProtocolIPv4:
		return "IPv4"
	case pppProtocolIPv6:
		return "IPv6"
	case pppProtocolLCP:
		return "LCP"
	case pppProtocolPAP:
		return "PAP"
	case pppProtocolCHAP:
		return "CHAP"
	case pppProtocolEAP:
		return "EAP"
	case pppProtocolIPCP:
		return "IPCP"
	case pppProtocolIPv6CP:
		return "IPv6CP"
	}
	return "unknown-ppp-protocol"
}

// pppHDLCHeader is the fixed 2-byte HDLC framing prefix retained by
// PPP-over-SSTP framing.
const pppHDLCHeader uint16 = 0xFF03

// pppCode is the 1-byte Code field common to LCP, IPCP and IPv6CP frames.
type pppCode uint8

const (
	pppCodeConfigureRequest pppCode = 1
	pppCodeConfigureAck     pppCode = 2
	pppCodeConfigureNak     pppCode = 3
	pppCodeConfigureReject  pppCode = 4
	pppCodeTerminateRequest pppCode = 5
	pppCodeTerminateAck     pppCode = 6
	pppCodeCodeReject       pppCode = 7
	pppCodeProtocolReject   pppCode = 8
	pppCodeEchoRequest      pppCode = 9
	pppCodeEchoReply        pppCode = 10
	pppCodeDiscardRequest   pppCode = 11
)

func (c pppCode) String() string {
	switch c {
	case pppCodeConfigureRequest:
		return "Configure-Request"
	case pppCodeConfigureAck:
		return "Configure-Ack"
	case pppCodeConfigureNak:
		return "Configure-Nak"
	case pppCodeConfigureReject:
		return "Configure-Reject"
	case pppCodeTerminateRequest:
		return "Terminate-Request"
	case pppCodeTerminateAck:
		return "Terminate-Ack"
	case pppCodeCodeReject:
		return "Code-Reject"
	case pppCodeProtocolReject:
		return "Protocol-Reject"
	case pppCodeEchoRequest:
		return "Echo-Request"
	case pppCodeEchoReply:
		return "Echo-Reply"
	case pppCodeDiscardRequest:
		return "Discard-Request"
	}
	return "unknown-ppp-code"
}

// papCode is the 1-byte Code field of a PAP frame.
type papCode uint8

const (
	papCodeAuthenticateRequest papCode = 1
	papCodeAuthenticateAck     papCode = 2
	papCodeAuthenticateNak     papCode = 3
)

// chapCode is the 1-byte Code field of a CHAP frame.
type chapCode uint8

const (
	chapCodeChallenge chapCode = 1
	chapCodeResponse  chapCode = 2
	chapCodeSuccess   chapCode = 3
	chapCodeFailure   chapCode = 4
)

// chapAlgorithmMSCHAPv2 is the only CHAP algorithm this client will accept.
const chapAlgorithmMSCHAPv2 uint8 = 0x81

// eapCode is the 1-byte Code field of an EAP frame.
type eapCode uint8

const (
	eapCodeRequest  eapCode = 1
	eapCodeResponse eapCode = 2
	eapCodeSuccess  eapCode = 3
	eapCodeFailure  eapCode = 4
)

// eapType is the 1-byte Type field of an EAP Request/Response frame.
type eapType uint8

const (
	eapTypeIdentity  eapType = 1
	eapTypeMSAuth    eapType = 26
)

// EAP-MSCHAPv2 (RFC draft-kamath-pppext-eap-mschapv2) opcodes, carried as
// the first byte of the EAP Type-Data for eapTypeMSAuth.
type mschapv2OpCode uint8

const (
	mschapv2OpChallenge      mschapv2OpCode = 1
	mschapv2OpResponse       mschapv2OpCode = 2
	mschapv2OpSuccess        mschapv2OpCode = 3
	mschapv2OpFailure        mschapv2OpCode = 4
	mschapv2OpChangePassword mschapv2OpCode = 7
)

// PPP LCP option types used by this client.
const (
	lcpOptMRU       uint8 = 1
	lcpOptAuthProto uint8 = 3
	lcpOptMagic     uint8 = 5
)

// PPP IPCP option types used by this client.
const (
	ipcpOptIPAddress uint8 = 3
	ipcpOptDNS       uint8 = 129
)

// PPP IPv6CP option types used by this client.
const (
	ipv6cpOptInterfaceIdentifier uint8 = 1
)

// AuthProtocol identifies which PPP authentication protocol was
// negotiated (or preferred) for a tunnel.
type AuthProtocol int

const (
	// AuthProtocolNone indicates no authentication protocol has been
	// negotiated yet.
	AuthProtocolNone AuthProtocol = iota
	// AuthProtocolPAP is the Password Authentication Protocol.
	AuthProtocolPAP
	// AuthProtocolMSCHAPv2 is MS-CHAPv2 carried inside PPP CHAP.
	AuthProtocolMSCHAPv2
	// AuthProtocolEAPMSCHAPv2 is MS-CHAPv2 carried inside PPP EAP.
	AuthProtocolEAPMSCHAPv2
)

func (a AuthProtocol) String() string {
	switch a {
	case AuthProtocolPAP:
		return "PAP"
	case AuthProtocolMSCHAPv2:
		return "MSCHAPv2"
	case AuthProtocolEAPMSCHAPv2:
		return "EAP-MSCHAPv2"
	}
	return "none"
}

// Negotiation timing constants, per spec section 4.5 and 4.10.
const (
	requestInterval    = 3 * time.Second
	maxConfigureReqs   = 10
	phaseTimeout       = 30 * time.Second
	sstpRequestRetries = 3
	sstpRequestInterval = 60 * time.Second
	echoInterval       = 20 * time.Second
	minMRU             = 68
	maxMRU             = 2000
	defaultMRU         = 1500
)

// mailboxDepth is the bounded channel capacity used for every
// negotiator/authenticator/control mailbox.
const mailboxDepth = 8

// outgoingMuxQueueDepth bounds the queue between the tun reader goroutine
// and the writer goroutine that coalesces back-to-back datagrams (§4.4).
const outgoingMuxQueueDepth = 32

// outgoingMuxMaxBatch caps how many datagrams are coalesced into a single
// TLS write, so one hot interface can't starve the writer indefinitely.
const outgoingMuxMaxBatch = 16
