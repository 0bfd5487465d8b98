package multiplexer

import (
	"errors"
	"io"
	"net"
)

const (
	_HeaderSize = 128
	_Version    = 1

	_PacketTypeClientMeta = 1
	_PacketTypeServerMeta = 2

	_HandshakeStatusSuccess                 = 0
	_HandshakeStatusUnsupportedTrafficIndex = 1
	_HandshakeStatusUpgradeVersion          = 2
)

var (
	ErrVersionNotSupported      = errors.New("version not supported")
	ErrUnsupportedTrafficIndex  = errors.New("unsupported traffic index")
	ErrUnknownHandshakeStatus   = errors.New("unknown handshake status")
	ErrUnexpectedPacketType     = errors.New("unexpected packet type")
	ErrTrafficIndexNotMatched   = errors.New("traffic index not matched")
	ErrUnexpectedWrittenLength  = errors.New("write unexpected length of data")
	ErrVersionUpgradeIsRequired = errors.New("need to upgrade version")
)

// TrafficMeta is the fixed-size handshake header exchanged before a connection
// is handed to the consumer registered for its traffic index.
type TrafficMeta struct {
	Version         byte
	PacketType      byte
	TrafficIndex    uint8
	HandshakeStatus byte
}

func (t TrafficMeta) ToData() []byte {
	data := make([]byte, _HeaderSize)
	data[0] = t.Version
	data[1] = t.PacketType
	data[2] = t.TrafficIndex
	data[3] = t.HandshakeStatus
	return data
}

func (t *TrafficMeta) ReadInput(reader io.Reader) error {
	data := make([]byte, _HeaderSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return err
	}
	t.Version = data[0]
	t.PacketType = data[1]
	t.TrafficIndex = data[2]
	t.HandshakeStatus = data[3]
	return nil
}

func writeMeta(conn net.Conn, tm TrafficMeta) error {
	data := tm.ToData()
	if n, err := conn.Write(data); err != nil {
		return err
	} else if n != len(data) {
		return ErrUnexpectedWrittenLength
	}
	return nil
}

type TrafficConsumer func(conn net.Conn, meta TrafficMeta) error

type DedicatedServerConnMultiplexer struct {
	Consumers map[int]TrafficConsumer
}

func (d *DedicatedServerConnMultiplexer) ConsumeConn(conn net.Conn) error {
	ntm := TrafficMeta{}
	if err := ntm.ReadInput(conn); err != nil {
		return err
	}

	reply := TrafficMeta{
		Version:      _Version,
		PacketType:   _PacketTypeServerMeta,
		TrafficIndex: ntm.TrafficIndex,
	}
	switch {
	case ntm.Version != _Version:
		reply.Version = ntm.Version
		reply.HandshakeStatus = _HandshakeStatusUpgradeVersion
		_ = writeMeta(conn, reply)
		return ErrVersionNotSupported
	case ntm.PacketType != _PacketTypeClientMeta:
		return ErrUnexpectedPacketType
	case ntm.HandshakeStatus != _HandshakeStatusSuccess:
		return ErrUnknownHandshakeStatus
	}

	consumer, ok := d.Consumers[int(ntm.TrafficIndex)]
	if !ok {
		reply.HandshakeStatus = _HandshakeStatusUnsupportedTrafficIndex
		_ = writeMeta(conn, reply)
		return ErrUnsupportedTrafficIndex
	}
	reply.HandshakeStatus = _HandshakeStatusSuccess
	if err := writeMeta(conn, reply); err != nil {
		return err
	}
	return consumer(conn, reply)
}

func ClientConnInitialization(conn net.Conn, trafficIndex uint8) error {
	tm := TrafficMeta{
		Version:         _Version,
		PacketType:      _PacketTypeClientMeta,
		TrafficIndex:    trafficIndex,
		HandshakeStatus: _HandshakeStatusSuccess,
	}
	if err := writeMeta(conn, tm); err != nil {
		return err
	}

	ntm := TrafficMeta{}
	if err := ntm.ReadInput(conn); err != nil {
		return err
	}

	switch {
	case ntm.Version != _Version:
		return ErrVersionNotSupported
	case ntm.TrafficIndex != trafficIndex:
		return ErrTrafficIndexNotMatched
	case ntm.PacketType != _PacketTypeServerMeta:
		return ErrUnexpectedPacketType
	}
	switch ntm.HandshakeStatus {
	case _HandshakeStatusSuccess:
		return nil
	case _HandshakeStatusUnsupportedTrafficIndex:
		return ErrUnsupportedTrafficIndex
	case _HandshakeStatusUpgradeVersion:
		return ErrVersionUpgradeIsRequired
	default:
		return ErrUnknownHandshakeStatus
	}
}
