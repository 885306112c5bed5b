package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// ServerName carries the client's SNI host_name entry. Only the
// host_name(0) name type exists on the wire; this implementation does
// not emit any other type and ignores unknown ones on decode.
type ServerName struct {
	HostName string
}

func (s *ServerName) Type() Type  { return TypeServerName }
func (s *ServerName) Length() int { return 2 + 1 + 2 + len(s.HostName) }

func (s *ServerName) AppendTo(buf []byte) ([]byte, error) {
	entry := wire.PutUint8(nil, 0) // name_type = host_name
	var err error
	entry, err = wire.PutVector16(entry, []byte(s.HostName))
	if err != nil {
		return nil, err
	}
	return wire.PutVector16(buf, entry)
}

func decodeServerName(body []byte) (Body, error) {
	r := wire.NewReader(body)
	list, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("server_name: %w", err)
	}

	lr := wire.NewReader(list)
	for lr.Len() > 0 {
		nameType, err := lr.Uint8()
		if err != nil {
			return nil, fmt.Errorf("server_name: entry type: %w", err)
		}
		name, err := lr.Vector16()
		if err != nil {
			return nil, fmt.Errorf("server_name: entry: %w", err)
		}
		if nameType == 0 {
			return &ServerName{HostName: string(name)}, nil
		}
	}
	return &ServerName{}, nil
}

// ALPN carries protocol name proposals (client) or the single chosen
// protocol (server).
type ALPN struct {
	Protocols []string
}

func (a *ALPN) Type() Type { return TypeALPN }

func (a *ALPN) Length() int {
	n := 2
	for _, p := range a.Protocols {
		n += 1 + len(p)
	}
	return n
}

func (a *ALPN) AppendTo(buf []byte) ([]byte, error) {
	var list []byte
	for _, p := range a.Protocols {
		var err error
		list, err = wire.PutVector8(list, []byte(p))
		if err != nil {
			return nil, err
		}
	}
	return wire.PutVector16(buf, list)
}

func decodeALPN(_ Context, body []byte) (Body, error) {
	r := wire.NewReader(body)
	list, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("alpn: %w", err)
	}

	lr := wire.NewReader(list)
	var protos []string
	for lr.Len() > 0 {
		p, err := lr.Vector8()
		if err != nil {
			return nil, fmt.Errorf("alpn: entry: %w", err)
		}
		protos = append(protos, string(p))
	}
	return &ALPN{Protocols: protos}, nil
}
