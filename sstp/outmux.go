package sstp

// sendPppFrame wraps frame for proto and writes it to the transport. This
// is the single path every negotiator, authenticator and control task uses
// to emit a PPP frame, keeping TLS record ordering under the transport's
// own send mutex (§4.2, §5).
func sendPppFrame(sess *session, proto pppProtocol, frame *pppFrame) error {
	b, err := frame.toDataBytes(proto)
	if err != nil {
		return err
	}
	return sess.transport.send(b)
}

// outgoingMux reads L3 datagrams from the tun device and writes them to
// the transport as SSTP DATA packets, per §4.4. It runs as its own task
// from phase 8 onward.
type outgoingMux struct {
	sess   *session
	reader TunReader
}

func newOutgoingMux(sess *session, reader TunReader) *outgoingMux {
	return &outgoingMux{sess: sess, reader: reader}
}

// bufferSize is sized to the configured MTU plus SSTP/PPP framing
// overhead; two buffers alternate so one can refill while the other is
// in flight, mirroring the source's two-buffer handoff (§9: noted, not
// redesigned).
func (m *outgoingMux) bufferSize() int {
	return int(m.sess.config.PPP.MTU) + pppHeaderLen + pppFrameHeaderLen + sstpPacketHeaderLen
}

// run pumps datagrams until the reader returns an error (teardown closes
// the underlying device, which unblocks Read). A separate reader goroutine
// feeds a queue so the writer side can drain whatever has piled up and
// coalesce it into a single transport.send, instead of one TLS write per
// datagram (§4.4).
func (m *outgoingMux) run() error {
	pkts := make(chan []byte, outgoingMuxQueueDepth)
	readErr := make(chan error, 1)

	go m.readLoop(pkts, readErr)

	for {
		first, ok := <-pkts
		if !ok {
			return <-readErr
		}

		batch := first
		n := 1
		draining := true
		for draining && n < outgoingMuxMaxBatch {
			select {
			case b, ok := <-pkts:
				if !ok {
					draining = false
					break
				}
				batch = append(batch, b...)
				n++
			default:
				draining = false
			}
		}

		if err := m.sess.transport.send(batch); err != nil {
			return err
		}
	}
}

// readLoop reads L3 datagrams and pushes their encoded SSTP DATA bytes onto
// pkts until the reader errors, then closes pkts and reports the error.
func (m *outgoingMux) readLoop(pkts chan<- []byte, readErr chan<- error) {
	bufs := [2][]byte{
		make([]byte, m.bufferSize()),
		make([]byte, m.bufferSize()),
	}
	idx := 0

	for {
		buf := bufs[idx]
		idx = 1 - idx

		n, err := m.reader.Read(buf)
		if err != nil {
			readErr <- err
			close(pkts)
			return
		}
		if n == 0 {
			continue
		}
		if encoded, ok := m.encodeDatagram(buf[:n]); ok {
			pkts <- encoded
		}
	}
}

// encodeDatagram wraps datagram as a complete SSTP DATA packet, or reports
// false if the datagram's protocol is disabled or unrecognised.
func (m *outgoingMux) encodeDatagram(datagram []byte) ([]byte, bool) {
	var proto pppProtocol
	switch datagram[0] >> 4 {
	case 4:
		if !m.sess.config.PPP.IPv4Enabled {
			return nil, false
		}
		proto = pppProtocolIPv4
	case 6:
		if !m.sess.config.PPP.IPv6Enabled {
			return nil, false
		}
		proto = pppProtocolIPv6
	default:
		m.sess.mailboxes.report(WhereEngine, ErrUnknownType, nil)
		return nil, false
	}

	return encodeIPDatagram(proto, datagram), true
}
