package sstp

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/go-kit/kit/log/level"
)

// demuxBufferSize bounds the read buffer; SSTP packets are at most 65535
// bytes (the length field is 16 bits).
const demuxBufferSize = 65535

// demultiplexer reads the TLS byte stream, delimits SSTP packets, and
// routes them: PPP control frames go to the mailbox for their protocol,
// IPv4/IPv6 data frames go to the tun writer, CONTROL packets go to the
// SSTP-control mailbox. It owns both echo timers, ticking them on receipt
// and checking them every loop iteration (§4.3, §4.10).
type demultiplexer struct {
	sess      *session
	xport     *transport
	tunWriter atomic.Value // holds TunWriter
	sstpTimer *echoTimer
	pppTimer  *echoTimer

	buf    []byte
	filled int
}

// tunWriterBox lets a nil TunWriter be stored in an atomic.Value, which
// otherwise requires every stored value to share a concrete, non-nil type.
type tunWriterBox struct{ w TunWriter }

func newDemultiplexer(sess *session, xport *transport, tunWriter TunWriter, sstpTimer, pppTimer *echoTimer) *demultiplexer {
	d := &demultiplexer{
		sess:      sess,
		xport:     xport,
		sstpTimer: sstpTimer,
		pppTimer:  pppTimer,
		buf:       make([]byte, demuxBufferSize),
	}
	d.tunWriter.Store(tunWriterBox{w: tunWriter})
	return d
}

// setTunWriter installs the tun device's writer once it is established
// (§4.9 phase 8); safe to call concurrently with the demultiplexer's
// read loop.
func (d *demultiplexer) setTunWriter(w TunWriter) {
	d.tunWriter.Store(tunWriterBox{w: w})
}

func (d *demultiplexer) getTunWriter() TunWriter {
	return d.tunWriter.Load().(tunWriterBox).w
}

// run is the incoming demultiplexer's task body (§4.3). It returns the
// terminal Result once the loop exits, for any reason.
func (d *demultiplexer) run() (Where, Result, error) {
	for {
		if !d.sstpTimer.checkAlive() {
			return WhereSSTPControl, ErrTimeout, nil
		}
		if !d.pppTimer.checkAlive() {
			return WhereLCP, ErrTimeout, nil
		}

		if d.filled < sstpPacketHeaderLen {
			n, err := d.xport.receive(d.buf[d.filled:])
			if err != nil {
				if isTimeoutErr(err) {
					continue
				}
				return WhereTLS, ErrUnexpectedMessage, err
			}
			d.filled += n
			continue
		}

		length := int(binary.BigEndian.Uint16(d.buf[2:4]))
		if length < sstpPacketHeaderLen || length > demuxBufferSize {
			return WhereEngine, ErrInvalidPacketSize, nil
		}

		if d.filled < length {
			n, err := d.xport.receive(d.buf[d.filled:])
			if err != nil {
				if isTimeoutErr(err) {
					continue
				}
				return WhereTLS, ErrUnexpectedMessage, err
			}
			d.filled += n
			continue
		}

		packet := append([]byte(nil), d.buf[:length]...)
		copy(d.buf, d.buf[length:d.filled])
		d.filled -= length

		d.sstpTimer.tick()

		where, result, err, fatal := d.dispatch(packet)
		if fatal {
			return where, result, err
		}
	}
}

func isTimeoutErr(err error) bool {
	type timeoutErr interface {
		Timeout() bool
	}
	te, ok := err.(timeoutErr)
	return ok && te.Timeout()
}

// dispatch handles one complete SSTP packet. fatal is true iff the
// demultiplexer loop must terminate as a result.
func (d *demultiplexer) dispatch(packet []byte) (where Where, result Result, err error, fatal bool) {
	hdr, err := parseSstpPacketHeader(packet)
	if err != nil {
		return WhereEngine, ErrParsingFailed, err, true
	}

	switch hdr.Type {
	case sstpPacketTypeData:
		return d.dispatchData(packet[sstpPacketHeaderLen:])
	case sstpPacketTypeControl:
		msg, err := parseSstpControlBuffer(packet[sstpPacketHeaderLen:])
		if err != nil {
			return WhereSSTPControl, ErrParsingFailed, err, true
		}
		d.sess.mailboxes.sstpControl <- msg
		return "", Proceeded, nil, false
	}
	return WhereEngine, ErrUnknownType, nil, true
}

func (d *demultiplexer) dispatchData(ppp []byte) (Where, Result, error, bool) {
	if len(ppp) < pppHeaderLen {
		return WhereEngine, ErrParsingFailed, nil, true
	}
	hdlc := binary.BigEndian.Uint16(ppp[0:2])
	if hdlc != pppHDLCHeader {
		return WhereEngine, ErrParsingFailed, nil, true
	}
	d.pppTimer.tick()

	proto := pppProtocol(binary.BigEndian.Uint16(ppp[2:4]))
	payload := ppp[pppHeaderLen:]

	switch proto {
	case pppProtocolIPv4:
		if d.sess.config.PPP.IPv4Enabled {
			if w := d.getTunWriter(); w != nil {
				_, _ = w.Write(payload, 0, len(payload))
			}
		}
		return "", Proceeded, nil, false
	case pppProtocolIPv6:
		if d.sess.config.PPP.IPv6Enabled {
			if w := d.getTunWriter(); w != nil {
				_, _ = w.Write(payload, 0, len(payload))
			}
		}
		return "", Proceeded, nil, false
	}

	frame, err := parsePppFrame(payload)
	if err != nil {
		return WhereEngine, ErrParsingFailed, err, true
	}
	frame.proto = proto
	frame.raw = append([]byte(nil), payload[:frame.header.Length]...)

	if proto == pppProtocolLCP && !isConfigureCode(frame.header.Code) {
		// Post-negotiation LCP codes (Echo-Request/Reply, Discard-Request,
		// Terminate-Request, Protocol-Reject, Code-Reject) are handled by
		// the PPP-control task, not the LCP negotiator's mailbox -- nothing
		// reads mb.lcp once phase 3 has completed.
		select {
		case d.sess.mailboxes.pppCtl <- frame:
		default:
			level.Debug(d.sess.logger).Log("msg", "dropping LCP control frame, PPP-control mailbox full", "code", frame.header.Code)
		}
		return "", Proceeded, nil, false
	}

	if mailbox, handled := d.sess.mailboxes.forProtocol(proto); handled {
		select {
		case mailbox <- frame:
		default:
			level.Debug(d.sess.logger).Log("msg", "dropping frame, mailbox full or unregistered", "proto", proto)
		}
		return "", Proceeded, nil, false
	}

	// Unknown protocol: pass through to PPP-control, which will produce a
	// Protocol-Reject. ERR_UNKNOWN_TYPE is reported only when the
	// PPP-control mailbox is full; before phase 7 nothing drains it.
	select {
	case d.sess.mailboxes.pppCtl <- frame:
		return "", Proceeded, nil, false
	default:
		return WhereEngine, ErrUnknownType, nil, true
	}
}
