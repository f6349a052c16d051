package pandar

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"
)

// Point is one calibrated lidar return.
// Invalid geometry is signalled by NaN coordinates, never by an error: a
// point rejected by the range gate or the degenerate-origin rule keeps its
// intensity but carries NaN in X, Y and Z.
type Point struct {
	X, Y, Z   float64 // Sensor-frame position in meters (NaN = invalid)
	Intensity uint8   // Laser return intensity (high byte of raw reflectivity)
	Ring      int     // Zero-based laser channel index that produced the point
}

// PointCloud is an appendable, ordered point collection. It is owned by the
// caller; the decoder only appends to it.
type PointCloud struct {
	Points []Point
}

// Append adds a point to the cloud.
func (pc *PointCloud) Append(p Point) {
	pc.Points = append(pc.Points, p)
}

// Len returns the number of points in the cloud.
func (pc *PointCloud) Len() int {
	return len(pc.Points)
}

// DecoderConfig holds the setup parameters consumed by the decode core.
// CalibrationFile may be empty, in which case the embedded factory default
// correction table is used.
type DecoderConfig struct {
	CalibrationFile string  // Path to the per-laser correction CSV
	MinRange        float64 // Minimum accepted distance in meters
	MaxRange        float64 // Maximum accepted distance in meters
	ViewDirection   float64 // Center of the view sector in radians
	ViewWidth       float64 // Width of the view sector in radians
}

// Decoder converts raw Pandar40 packets into calibrated point clouds.
// After construction it is immutable and safe for concurrent Unpack calls on
// independent packets; a shared output PointCloud must be serialized by the
// caller.
type Decoder struct {
	calib *Calibration
	trig  *TrigTable

	minRange float64
	maxRange float64

	// View sector bounds in hundredth-of-degree hardware units, derived from
	// ViewDirection/ViewWidth at setup. The decode path does not enforce
	// them; they are kept for parity with the device configuration and for
	// callers that filter by azimuth themselves.
	minAngle int
	maxAngle int

	packetCount atomic.Int64
}

// NewDecoder loads the calibration and builds the trig lookup. A missing or
// invalid calibration source fails setup: no decode call is accepted without
// a loaded correction table.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	var calib *Calibration
	var err error
	if cfg.CalibrationFile != "" {
		calib, err = LoadCalibration(cfg.CalibrationFile)
	} else {
		calib, err = LoadEmbeddedCalibration()
	}
	if err != nil {
		return nil, err
	}
	if err := calib.Validate(); err != nil {
		return nil, err
	}
	log.Printf("loaded corrections for %d lasers", calib.NumLasers())

	d := &Decoder{
		calib:    calib,
		trig:     NewTrigTable(AZIMUTH_RESOLUTION),
		minRange: cfg.MinRange,
		maxRange: cfg.MaxRange,
	}
	d.setViewSector(cfg.ViewDirection, cfg.ViewWidth)
	return d, nil
}

// setViewSector converts the view direction/width into hardware azimuth units.
// Angles are normalized into [0, 2π) and mapped into the sensor's negative
// hundredth-of-degree convention. If the sector collapses to a single angle
// the full rotation is kept to avoid an empty cloud.
func (d *Decoder) setViewSector(direction, width float64) {
	minAngle := math.Mod(math.Mod(direction+width/2, 2*math.Pi)+2*math.Pi, 2*math.Pi)
	maxAngle := math.Mod(math.Mod(direction-width/2, 2*math.Pi)+2*math.Pi, 2*math.Pi)

	d.minAngle = int(100*(2*math.Pi-minAngle)*180/math.Pi + 0.5)
	d.maxAngle = int(100*(2*math.Pi-maxAngle)*180/math.Pi + 0.5)
	if d.minAngle == d.maxAngle {
		d.minAngle = 0
		d.maxAngle = ROTATION_MAX_UNITS
	}
}

// Calibration exposes the loaded correction table.
func (d *Decoder) Calibration() *Calibration {
	return d.calib
}

// computeXYZIR resolves one (azimuth, measurement, correction) triple into a
// calibrated point. Out-of-range and degenerate results are marked with NaN
// coordinates rather than errors so downstream filtering stays uniform.
func (d *Decoder) computeXYZIR(azimuth int, measure RawMeasure, correction *LaserCorrection) Point {
	point := Point{Intensity: uint8(measure.Reflectivity >> 8)}

	distance := float64(measure.Range) * RANGE_RESOLUTION
	if distance < d.minRange || distance > d.maxRange {
		point.X = math.NaN()
		point.Y = math.NaN()
		point.Z = math.NaN()
		return point
	}

	var sinAzimuth, cosAzimuth float64
	if correction.AzimuthCorrection == 0 {
		sinAzimuth = d.trig.Sin(azimuth)
		cosAzimuth = d.trig.Cos(azimuth)
	} else {
		// Slow path, only taken when a laser has a nonzero azimuth trim
		azimuthRad := (float64(azimuth)/100.0 + correction.AzimuthCorrection) * math.Pi / 180.0
		sinAzimuth = math.Sin(azimuthRad)
		cosAzimuth = math.Cos(azimuthRad)
	}

	distance += correction.DistanceCorrection

	xyDistance := distance * correction.CosVertCorrection

	point.X = xyDistance*sinAzimuth - correction.HorizontalOffsetCorrection*cosAzimuth
	point.Y = xyDistance*cosAzimuth + correction.HorizontalOffsetCorrection*sinAzimuth
	point.Z = distance*correction.SinVertCorrection + correction.VerticalOffsetCorrection

	// A return exactly at the origin is indistinguishable from a zeroed
	// "no return" measurement, so it is marked invalid as well
	if point.X == 0 && point.Y == 0 && point.Z == 0 {
		point.X = math.NaN()
		point.Y = math.NaN()
		point.Z = math.NaN()
	}
	return point
}

// ToPointCloud walks a parsed packet block-major, channel-minor, resolving
// every measurement and appending the valid points to the caller's cloud.
// Points with any NaN coordinate are dropped silently; that is the designed
// filtering mechanism, not an error. Ring carries the channel index, and the
// append order is an observable contract for downstream ring indexing.
func (d *Decoder) ToPointCloud(packet *RawPacket, cloud *PointCloud) {
	for i := 0; i < BLOCKS_PER_PACKET; i++ {
		block := &packet.Blocks[i]
		for j := 0; j < LASER_COUNT; j++ {
			point := d.computeXYZIR(int(block.Azimuth), block.Measures[j], d.calib.Correction(j))
			if math.IsNaN(point.X) || math.IsNaN(point.Y) || math.IsNaN(point.Z) {
				continue
			}
			point.Ring = j
			cloud.Append(point)
		}
	}
}

// Unpack decodes one raw packet buffer and appends its calibrated points to
// the caller-owned cloud. A wire-format failure aborts this packet only and
// leaves the cloud untouched; subsequent packets are unaffected.
func (d *Decoder) Unpack(data []byte, cloud *PointCloud) error {
	count := d.packetCount.Add(1)

	packet, err := ParsePacket(data)
	if err != nil {
		return fmt.Errorf("packet %d: %v", count, err)
	}
	d.ToPointCloud(packet, cloud)
	return nil
}

// PacketCount returns the number of Unpack calls made on this decoder.
func (d *Decoder) PacketCount() int64 {
	return d.packetCount.Load()
}
