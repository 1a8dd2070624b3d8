package sensors

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

// SNMPTarget is the remote agent a query is sent to.
type SNMPTarget struct {
	Host      string
	Port      int
	Community string
}

// Row is one variable binding of a response: the object identifier followed by its value.
type Row []interface{}

// SNMPResult is the answer of a remote agent. A non-zero ErrorStatus means the
// agent rejected the request; ErrorIndex is then the 1-based position of the
// offending binding.
type SNMPResult struct {
	ErrorStatus gosnmp.SNMPError
	ErrorIndex  int
	Rows        []Row
}

// SNMPClient issues a single GET. The returned error is a transport failure.
type SNMPClient interface {
	Get(target SNMPTarget, oid string) (*SNMPResult, error)
}

// GoSNMPClient queries agents with SNMPv1 over UDP.
type GoSNMPClient struct {
	// Timeout falls back to the library default when zero.
	Timeout time.Duration
	// Retries falls back to the library default when zero; a negative value
	// sends the request once without retrying.
	Retries int
}

func (c GoSNMPClient) session(target SNMPTarget) *gosnmp.GoSNMP {
	g := &gosnmp.GoSNMP{
		Target:    target.Host,
		Port:      uint16(target.Port),
		Transport: "udp",
		Community: target.Community,
		Version:   gosnmp.Version1,
		Timeout:   c.Timeout,
		Retries:   c.Retries,
		MaxOids:   gosnmp.MaxOids,
	}
	if g.Timeout == 0 {
		g.Timeout = gosnmp.Default.Timeout
	}
	switch {
	case g.Retries == 0:
		g.Retries = gosnmp.Default.Retries
	case g.Retries < 0:
		g.Retries = 0
	}
	return g
}

func (c GoSNMPClient) Get(target SNMPTarget, oid string) (*SNMPResult, error) {
	g := c.session(target)

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", target.Host, target.Port, err)
	}
	defer g.Conn.Close()

	pkt, err := g.Get([]string{oid})
	if err != nil {
		return nil, fmt.Errorf("get %s from %s:%d: %w", oid, target.Host, target.Port, err)
	}

	res := &SNMPResult{ErrorStatus: pkt.Error, ErrorIndex: int(pkt.ErrorIndex)}
	for _, v := range pkt.Variables {
		res.Rows = append(res.Rows, Row{v.Name, pduValue(v)})
	}
	return res, nil
}

func pduValue(v gosnmp.SnmpPDU) interface{} {
	if v.Type == gosnmp.OctetString {
		if b, ok := v.Value.([]byte); ok {
			return string(b)
		}
	}
	return v.Value
}
