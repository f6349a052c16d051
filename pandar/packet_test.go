package pandar

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildPacket constructs a well-formed 1240-byte Pandar40 payload where every
// channel in every block carries the same measurement.
func buildPacket(azimuths [BLOCKS_PER_PACKET]uint16, rng uint32, refl uint16) []byte {
	buf := make([]byte, PACKET_SIZE)
	idx := 0

	for b := 0; b < BLOCKS_PER_PACKET; b++ {
		binary.LittleEndian.PutUint16(buf[idx:], SOB_MARKER)
		binary.LittleEndian.PutUint16(buf[idx+2:], azimuths[b])
		idx += SOB_ANGLE_SIZE

		for l := 0; l < LASER_COUNT; l++ {
			buf[idx] = byte(rng)
			buf[idx+1] = byte(rng >> 8)
			buf[idx+2] = byte(rng >> 16)
			binary.LittleEndian.PutUint16(buf[idx+3:], refl)
			idx += RAW_MEASURE_SIZE
		}
	}

	idx += RESERVE_SIZE
	binary.LittleEndian.PutUint16(buf[idx:], 77)         // revolution counter
	binary.LittleEndian.PutUint32(buf[idx+2:], 12345678) // device timestamp
	buf[idx+6] = 0x42
	buf[idx+7] = 0x87
	return buf
}

func TestParsePacketSizeMismatch(t *testing.T) {
	sizes := []int{0, 1, PACKET_SIZE - 1, PACKET_SIZE + 1, 2 * PACKET_SIZE}
	for _, size := range sizes {
		_, err := ParsePacket(make([]byte, size))
		if err == nil {
			t.Errorf("expected error for %d-byte buffer, got none", size)
		}
	}
}

func TestParsePacketFields(t *testing.T) {
	azimuths := [BLOCKS_PER_PACKET]uint16{0, 6000, 12000, 18000, 24000, 30000}
	packet, err := ParsePacket(buildPacket(azimuths, 50000, 0x0200))
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}

	if packet.Revolution != 77 {
		t.Errorf("revolution = %d, want 77", packet.Revolution)
	}
	if packet.Timestamp != 12345678 {
		t.Errorf("timestamp = %d, want 12345678", packet.Timestamp)
	}
	if packet.Factory[0] != 0x42 || packet.Factory[1] != 0x87 {
		t.Errorf("factory id = %v, want [0x42 0x87]", packet.Factory)
	}

	for i, block := range packet.Blocks {
		if block.Azimuth != azimuths[i] {
			t.Errorf("block %d azimuth = %d, want %d", i, block.Azimuth, azimuths[i])
		}
		for j, measure := range block.Measures {
			if measure.Range != 50000 {
				t.Fatalf("block %d laser %d range = %d, want 50000", i, j, measure.Range)
			}
			if measure.Reflectivity != 0x0200 {
				t.Fatalf("block %d laser %d reflectivity = %#04x, want 0x0200", i, j, measure.Reflectivity)
			}
		}
	}
}

func TestParsePacketBadMarker(t *testing.T) {
	buf := buildPacket([BLOCKS_PER_PACKET]uint16{}, 1000, 10)
	// Corrupt the marker of the third block
	binary.LittleEndian.PutUint16(buf[2*BLOCK_SIZE:], 0xBEEF)

	if _, err := ParsePacket(buf); err == nil {
		t.Error("expected error for corrupt start-of-block marker, got none")
	}
}

func TestSentinelNormalization(t *testing.T) {
	buf := buildPacket([BLOCKS_PER_PACKET]uint16{}, INVALID_RANGE, INVALID_REFLECTIVITY)
	packet, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}

	for i, block := range packet.Blocks {
		for j, measure := range block.Measures {
			if measure.Range != 0 || measure.Reflectivity != 0 {
				t.Fatalf("block %d laser %d not normalized: range=%d reflectivity=%d",
					i, j, measure.Range, measure.Reflectivity)
			}
		}
	}

	// The range half of the pattern alone is a legitimate reading
	packet, err = ParsePacket(buildPacket([BLOCKS_PER_PACKET]uint16{}, INVALID_RANGE, 0x0200))
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}
	if got := packet.Blocks[0].Measures[0].Range; got != INVALID_RANGE {
		t.Errorf("range = %d, want %d (sentinel needs both halves to match)", got, INVALID_RANGE)
	}
}

func TestRangeCeilingNormalization(t *testing.T) {
	packet, err := ParsePacket(buildPacket([BLOCKS_PER_PACKET]uint16{}, MAX_RANGE_UNITS+1, 0x0300))
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}
	if m := packet.Blocks[0].Measures[0]; m.Range != 0 || m.Reflectivity != 0 {
		t.Errorf("over-ceiling measurement not normalized: range=%d reflectivity=%d", m.Range, m.Reflectivity)
	}

	// Exactly at the ceiling is still valid
	packet, err = ParsePacket(buildPacket([BLOCKS_PER_PACKET]uint16{}, MAX_RANGE_UNITS, 0x0300))
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}
	if got := packet.Blocks[0].Measures[0].Range; got != MAX_RANGE_UNITS {
		t.Errorf("range = %d, want %d", got, MAX_RANGE_UNITS)
	}
}

func TestParsePacketDeterministic(t *testing.T) {
	buf := buildPacket([BLOCKS_PER_PACKET]uint16{100, 200, 300, 400, 500, 600}, 42000, 0x0a01)

	first, err := ParsePacket(buf)
	if err != nil {
		t.Fatalf("failed to parse packet: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ParsePacket(buf)
		if err != nil {
			t.Fatalf("failed to parse packet on pass %d: %v", i, err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("parse not deterministic (-first +again):\n%s", diff)
		}
	}
}

func BenchmarkParsePacket(b *testing.B) {
	buf := buildPacket([BLOCKS_PER_PACKET]uint16{0, 6000, 12000, 18000, 24000, 30000}, 50000, 0x0200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePacket(buf); err != nil {
			b.Fatalf("failed to parse packet: %v", err)
		}
	}
}
