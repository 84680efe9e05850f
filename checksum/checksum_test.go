package checksum

import "testing"

func TestChecksumOfZeroIsZero(t *testing.T) {
	if got := Checksum([]byte{0, 0, 0, 0}, 0); got != 0 {
		t.Fatalf("got 0x%x, want 0", got)
	}
}

func TestChecksumOddLength(t *testing.T) {
	// A trailing odd byte is padded with a zero low byte
	got := Checksum([]byte{0x01}, 0)
	want := uint16(0x0100)
	if got != want {
		t.Fatalf("got 0x%x, want 0x%x", got, want)
	}
}

func TestChecksumThreadedAcrossSpans(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78}

	whole := Checksum(buf, 0)

	split := Checksum(buf[:2], 0)
	split = Checksum(buf[2:], split)

	if whole != split {
		t.Fatalf("splitting the buffer changed the result: whole=0x%x split=0x%x", whole, split)
	}
}

func TestChecksumVerifiesOwnComplement(t *testing.T) {
	// A made-up 8-byte header with its checksum field (last 2 bytes)
	// zeroed, as emission requires
	buf := []byte{0x45, 0x00, 0x00, 0x28, 0x1c, 0x46, 0x00, 0x00}

	sum := Checksum(buf, 0)
	stored := ^sum

	buf[len(buf)-2] = byte(stored >> 8)
	buf[len(buf)-1] = byte(stored)

	verify := Checksum(buf, 0)
	if verify != 0 && verify != 0xffff {
		t.Fatalf("checksum did not self-verify: got 0x%x", verify)
	}
}
