package udpx

import (
	"net"
	"testing"

	"github.com/cyphal-go/uavnode/node"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	h := node.Header{
		Priority:     node.PriorityNominal,
		DatatypeHash: 0x0123456789ABCDEF,
		TransferID:   77,
	}
	xfer := node.NewTransfer(h, []byte("hello udpx"), nil)

	body := encodeEnvelope(xfer)
	got, err := decodeEnvelope(body)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if got.Priority != h.Priority || got.TransferID != h.TransferID || got.DatatypeHash != h.DatatypeHash {
		t.Errorf("header mismatch: got %+v", got)
	}
	if string(got.Payload) != "hello udpx" {
		t.Errorf("payload = %q, want %q", got.Payload, "hello udpx")
	}
}

func TestEnvelopeEmptyPayload(t *testing.T) {
	xfer := node.NewTransfer(node.Header{}, nil, nil)
	got, err := decodeEnvelope(encodeEnvelope(xfer))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("payload = %v, want empty", got.Payload)
	}
}

func TestDecodeEnvelopeRejectsShortDatagram(t *testing.T) {
	if _, err := decodeEnvelope(make([]byte, envelopeHeaderLen-1)); err == nil {
		t.Fatal("expected an error for a too-short datagram")
	}
}

func TestSubjectPortBijection(t *testing.T) {
	for _, subjectID := range []uint16{0, 1, 100, 7168, 32767} {
		udp := udpPortForSubject(subjectID)
		kind, port, ok := decodeUDPPort(udp)
		if !ok || kind != node.Message || port.SubjectID() != subjectID {
			t.Errorf("subject %d: udp %d decoded as kind=%v port=%v ok=%v", subjectID, udp, kind, port, ok)
		}
	}
}

func TestServicePortBijection(t *testing.T) {
	for _, serviceID := range []uint16{0, 1, 256, 511, 4095} {
		for _, kind := range []node.TransferKind{node.Request, node.Response} {
			udp := udpPortForService(serviceID, kind)
			gotKind, port, ok := decodeUDPPort(udp)
			if !ok || gotKind != kind || port.ServiceID() != serviceID {
				t.Errorf("service %d kind %v: udp %d decoded as kind=%v port=%v ok=%v", serviceID, kind, udp, gotKind, port, ok)
			}
		}
	}
}

func TestRequestAndResponsePortsAreDistinctAndAdjacent(t *testing.T) {
	reqPort := udpPortForService(42, node.Request)
	respPort := udpPortForService(42, node.Response)
	if respPort != reqPort+1 {
		t.Errorf("response port = %d, want request port + 1 = %d", respPort, reqPort+1)
	}
}

func TestNodeIDIPRoundTrip(t *testing.T) {
	_, subnet, err := net.ParseCIDR("10.20.0.0/16")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []node.NodeID{0, 1, 42, 300, 65534} {
		ip := ipForNode(subnet, id)
		if got := nodeIDFromIP(ip); got != id {
			t.Errorf("node %d -> ip %s -> node %d, want round trip", id, ip, got)
		}
	}
}

func TestAnonymousNodeIDMapsToBroadcastWithinSubnet(t *testing.T) {
	_, subnet, err := net.ParseCIDR("10.20.0.0/16")
	if err != nil {
		t.Fatal(err)
	}
	ip := ipForNode(subnet, node.AnonymousNodeID)
	want := net.IPv4(10, 20, 255, 255).To4()
	if !ip.Equal(want) {
		t.Errorf("broadcast address = %s, want %s", ip, want)
	}
}
