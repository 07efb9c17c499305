package sstp

import (
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
)

// negotiatedState holds the mutable session values built up across the
// phases of a tunnel attempt (§3). Each field is written by the task that
// runs the phase owning it (LCP, authentication, IPCP, IPv6CP, SSTP
// request); the Engine starts the next phase only after that task has
// reported. frameIdCounter is the exception: it is allocated under its own
// mutex so that concurrent negotiators can each grab an id without
// stepping on one another (invariant 2).
type negotiatedState struct {
	currentMRU         uint16
	currentAuth        AuthProtocol
	currentIPv4        [4]byte
	currentIPv6        [8]byte
	currentProposedDNS [4]byte
	isDNSRejected      bool

	hlak         []byte
	nonce        [32]byte
	hashProtocol hashProtocol
	guid         string

	frameIDMu      sync.Mutex
	frameIDCounter uint8
}

func newNegotiatedState(cfg *Config) *negotiatedState {
	s := &negotiatedState{
		currentMRU: cfg.PPP.MRU,
		guid:       uuid.New().String(),
	}
	if cfg.PPP.DoRequestStaticIPv4 {
		s.currentIPv4 = cfg.PPP.StaticIPv4Address
	}
	return s
}

// nextFrameID allocates the next PPP frame id, wrapping modulo 256, under
// mutual exclusion (invariant 2).
func (s *negotiatedState) nextFrameID() uint8 {
	s.frameIDMu.Lock()
	defer s.frameIDMu.Unlock()
	id := s.frameIDCounter
	s.frameIDCounter++
	return id
}

// mailboxes groups the bounded per-client queues the demultiplexer routes
// frames into, plus the Engine's shared controlMessages queue. All of them
// are created once per tunnel attempt by newMailboxes and stay routable for
// the whole attempt; a mailbox whose owning task is not running buffers
// frames until it is full, after which the demultiplexer drops them.
type mailboxes struct {
	mu sync.Mutex

	lcp    chan *pppFrame
	pap    chan *pppFrame
	chap   chan *pppFrame
	eap    chan *pppFrame
	ipcp   chan *pppFrame
	ipv6cp chan *pppFrame
	pppCtl chan *pppFrame

	sstpControl chan *sstpControlMessage

	controlMessages chan ControlMessage
}

func newMailboxes() *mailboxes {
	return &mailboxes{
		lcp:             make(chan *pppFrame, mailboxDepth),
		pap:             make(chan *pppFrame, mailboxDepth),
		chap:            make(chan *pppFrame, mailboxDepth),
		eap:             make(chan *pppFrame, mailboxDepth),
		ipcp:            make(chan *pppFrame, mailboxDepth),
		ipv6cp:          make(chan *pppFrame, mailboxDepth),
		pppCtl:          make(chan *pppFrame, mailboxDepth),
		sstpControl:     make(chan *sstpControlMessage, mailboxDepth),
		controlMessages: make(chan ControlMessage, mailboxDepth),
	}
}

// forProtocol returns the mailbox a demultiplexed PPP frame for proto
// should be pushed onto, and whether that protocol is routed to a mailbox
// at all (IPv4/IPv6 data frames are not: they go straight to the tun
// writer).
func (mb *mailboxes) forProtocol(proto pppProtocol) (chan *pppFrame, bool) {
	switch proto {
	case pppProtocolLCP:
		return mb.lcp, true
	case pppProtocolPAP:
		return mb.pap, true
	case pppProtocolCHAP:
		return mb.chap, true
	case pppProtocolEAP:
		return mb.eap, true
	case pppProtocolIPCP:
		return mb.ipcp, true
	case pppProtocolIPv6CP:
		return mb.ipv6cp, true
	}
	return nil, false
}

// report sends a (Where, Result) pair to the Engine's controlMessages
// queue. Sends are non-blocking: when the queue is full (for instance
// after the Engine has stopped reading it) the message is dropped.
func (mb *mailboxes) report(where Where, result Result, err error) {
	select {
	case mb.controlMessages <- ControlMessage{Where: where, Result: result, Err: err}:
	default:
	}
}

// session is the full shared state for one tunnel attempt: immutable
// config, mutable negotiated state, the mailbox set, and the logger every
// task writes through.
type session struct {
	config     *Config
	negotiated *negotiatedState
	mailboxes  *mailboxes
	logger     log.Logger
	transport  *transport
}

func newSession(cfg *Config, logger log.Logger) *session {
	return &session{
		config:     cfg,
		negotiated: newNegotiatedState(cfg),
		mailboxes:  newMailboxes(),
		logger:     logger,
	}
}
