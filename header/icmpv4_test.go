package header

import (
	"testing"

	"github.com/YaoZengzeng/yutcp/checksum"
)

func TestICMPv4EchoEncodeDecode(t *testing.T) {
	b := make(ICMPv4, ICMPv4EchoMinimumSize+4)
	b.SetType(ICMPv4Echo)
	b.SetCode(0)
	b.SetIdentifier(0x1111)
	b.SetSequenceNumber(7)
	copy(b.Payload(), []byte{1, 2, 3, 4})

	if got := b.Type(); got != ICMPv4Echo {
		t.Errorf("Type: got %v, want %v", got, ICMPv4Echo)
	}
	if got := b.Identifier(); got != 0x1111 {
		t.Errorf("Identifier: got %#x, want 0x1111", got)
	}
	if got := b.SequenceNumber(); got != 7 {
		t.Errorf("SequenceNumber: got %d, want 7", got)
	}
	if got := b.Payload(); string(got) != "\x01\x02\x03\x04" {
		t.Errorf("Payload: got %v, want [1 2 3 4]", got)
	}
}

func TestICMPv4ChecksumVerifies(t *testing.T) {
	b := make(ICMPv4, ICMPv4EchoMinimumSize)
	b.SetType(ICMPv4Echo)
	b.SetCode(0)
	b.SetIdentifier(1)
	b.SetSequenceNumber(1)
	b.SetChecksum(0)

	b.SetChecksum(^checksum.Checksum(b, 0))

	if got := checksum.Checksum(b, 0); got != 0 && got != 0xffff {
		t.Fatalf("checksum did not verify: got %#x", got)
	}
}

func TestTypeStringKnownAndUnknown(t *testing.T) {
	if got, want := TypeString(ICMPv4Echo), "Echo"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := TypeString(ICMPv4Type(200)), "Unknown"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDstUnreachableCodeString(t *testing.T) {
	if got, want := DstUnreachableCodeString(ICMPv4PortUnreachable), "port unreachable"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := DstUnreachableCodeString(250), "unknown code"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
