package pandar

import (
	"encoding/binary"
	"fmt"
)

/*
Pandar40 LiDAR Packet Parser

This parser handles the original Hesai Pandar40 wire format: 1240-byte UDP
payloads containing measurements from 40 laser channels organized into 6 data
blocks per packet, generating up to 240 3D points per packet.

PACKET STRUCTURE (1240 bytes total):
├── Data Blocks (1224 bytes) - 6 blocks × 204 bytes each, starting at offset 0
│   └── Each block: 2-byte SOB marker (0xFFEE) + 2-byte azimuth + 40 channels × 5 bytes (3-byte range + 2-byte reflectivity)
└── Info tail (16 bytes) - 8 reserved + 2-byte revolution + 4-byte timestamp + 2-byte factory id

All multi-byte fields are little-endian. The 3-byte range field is composed by
shifting each additional byte left by 8× its position.

INVALID MEASUREMENT FILTERING:
The sensor emits a known garbage pattern (range=0x010101, reflectivity=0x0101)
for some channels, and ranges beyond 200 m are not physically meaningful at the
2 mm resolution. Both cases are normalized to (range=0, reflectivity=0) during
parsing so every consumer sees a uniform "no return" encoding.
*/

// Pandar40 LiDAR packet structure constants
// These define the fixed format of UDP payloads sent by Hesai Pandar40 sensors
const (
	SOB_ANGLE_SIZE    = 4                                             // Block header: 2-byte SOB marker + 2-byte azimuth
	RAW_MEASURE_SIZE  = 5                                             // Channel data size: 3 bytes range + 2 bytes reflectivity
	LASER_COUNT       = 40                                            // Number of laser channels per data block
	BLOCKS_PER_PACKET = 6                                             // Number of data blocks per packet
	BLOCK_SIZE        = SOB_ANGLE_SIZE + LASER_COUNT*RAW_MEASURE_SIZE // 204 bytes per block
	RESERVE_SIZE      = 8                                             // Reserved bytes between blocks and revolution counter
	REVOLUTION_SIZE   = 2                                             // Revolution counter size
	TIMESTAMP_SIZE    = 4                                             // Device timestamp size
	FACTORY_ID_SIZE   = 2                                             // Factory/model identifier size
	INFO_SIZE         = RESERVE_SIZE + REVOLUTION_SIZE + TIMESTAMP_SIZE + FACTORY_ID_SIZE
	PACKET_SIZE       = BLOCKS_PER_PACKET*BLOCK_SIZE + INFO_SIZE // 1240 bytes total

	// Physical measurement conversion constants
	RANGE_RESOLUTION   = 0.002 // Range unit: 2mm per LSB (converts raw values to meters)
	AZIMUTH_RESOLUTION = 0.01  // Azimuth unit: 0.01 degrees per LSB (converts raw values to degrees)
	ROTATION_MAX_UNITS = 36000 // Maximum azimuth value representing 360.00 degrees

	// Invalid measurement sentinels
	INVALID_RANGE        = 0x010101       // Garbage range pattern emitted by the sensor
	INVALID_REFLECTIVITY = 0x0101         // Garbage reflectivity pattern emitted by the sensor
	MAX_RANGE_UNITS      = 200 * 1000 / 2 // 200 m expressed in 2 mm units

	// SOB_MARKER is the start-of-block marker preceding every data block
	SOB_MARKER = 0xEEFF // 0xFFEE appears as 0xEEFF in little-endian
)

// RawMeasure is one laser channel's reading within a block.
// Range is in 2 mm units; only the high byte of Reflectivity carries intensity.
type RawMeasure struct {
	Range        uint32 // 24-bit range in 2 mm units (0 = no return)
	Reflectivity uint16 // Raw reflectivity; intensity is the upper byte
}

// RawBlock is one azimuth-tagged group of per-laser measurements.
type RawBlock struct {
	SOB      uint16                  // Start-of-block marker (0xEEFF)
	Azimuth  uint16                  // Raw azimuth angle in 0.01-degree units
	Measures [LASER_COUNT]RawMeasure // Measurement data for all 40 channels
}

// RawPacket is a fully decoded Pandar40 packet.
type RawPacket struct {
	Blocks     [BLOCKS_PER_PACKET]RawBlock
	Revolution uint16   // Revolution counter from the packet tail
	Timestamp  uint32   // Device clock timestamp (microseconds)
	Factory    [2]uint8 // Factory/model identifier bytes
}

// ParsePacket decodes a raw Pandar40 UDP payload into a RawPacket.
// The buffer must be exactly PACKET_SIZE bytes; any other length is rejected
// and nothing is decoded. Parsing is a pure function of the input bytes:
// identical buffers always yield identical packets.
func ParsePacket(data []byte) (*RawPacket, error) {
	if len(data) != PACKET_SIZE {
		return nil, fmt.Errorf("invalid packet size: expected %d, got %d", PACKET_SIZE, len(data))
	}

	packet := &RawPacket{}
	index := 0

	for i := 0; i < BLOCKS_PER_PACKET; i++ {
		block := &packet.Blocks[i]
		block.SOB = binary.LittleEndian.Uint16(data[index : index+2])
		if block.SOB != SOB_MARKER {
			return nil, fmt.Errorf("invalid start-of-block marker in block %d: expected 0x%04X, got 0x%04X",
				i, SOB_MARKER, block.SOB)
		}
		block.Azimuth = binary.LittleEndian.Uint16(data[index+2 : index+4])
		index += SOB_ANGLE_SIZE

		for j := 0; j < LASER_COUNT; j++ {
			measure := &block.Measures[j]
			// 3-byte little-endian range followed by 2-byte reflectivity
			measure.Range = uint32(data[index]) |
				uint32(data[index+1])<<8 |
				uint32(data[index+2])<<16
			measure.Reflectivity = binary.LittleEndian.Uint16(data[index+3 : index+5])

			// Normalize sensor garbage and out-of-spec ranges to "no return"
			// so downstream consumers never see them
			if (measure.Range == INVALID_RANGE && measure.Reflectivity == INVALID_REFLECTIVITY) ||
				measure.Range > MAX_RANGE_UNITS {
				measure.Range = 0
				measure.Reflectivity = 0
			}
			index += RAW_MEASURE_SIZE
		}
	}

	// Skip reserved bytes to keep field offsets synchronized
	index += RESERVE_SIZE

	packet.Revolution = binary.LittleEndian.Uint16(data[index : index+2])
	index += REVOLUTION_SIZE

	packet.Timestamp = binary.LittleEndian.Uint32(data[index : index+4])
	index += TIMESTAMP_SIZE

	packet.Factory[0] = data[index]
	packet.Factory[1] = data[index+1]

	return packet, nil
}
