package pandar

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

//go:embed sensor_configs/*.csv
var embeddedConfigs embed.FS

// LaserCorrection holds the geometric calibration for one laser channel.
// Elevation sine/cosine are precomputed at load time so the per-point path
// never evaluates trig for the vertical angle.
type LaserCorrection struct {
	Laser                      int     // Laser channel number (1-40)
	ElevationAngle             float64 // Vertical angle in degrees (relative to horizontal plane)
	AzimuthCorrection          float64 // Horizontal angle trim in degrees (0 = use lookup table)
	DistanceCorrection         float64 // Additive range correction in meters
	HorizontalOffsetCorrection float64 // Lateral offset of the laser origin in meters
	VerticalOffsetCorrection   float64 // Vertical offset of the laser origin in meters
	SinVertCorrection          float64 // Precomputed sin(ElevationAngle)
	CosVertCorrection          float64 // Precomputed cos(ElevationAngle)
}

// Calibration is the per-laser correction table, indexed by channel order as
// listed in the source file. Loaded once at setup and immutable afterward:
// shared read-only by all decode calls.
type Calibration struct {
	Corrections [LASER_COUNT]LaserCorrection
	numLasers   int
}

// NumLasers returns the number of correction records loaded from the source.
func (c *Calibration) NumLasers() int {
	return c.numLasers
}

// Correction returns the correction for a zero-based channel index.
func (c *Calibration) Correction(laser int) *LaserCorrection {
	return &c.Corrections[laser]
}

// LoadCalibration reads a correction CSV from disk. A missing, unreadable, or
// empty source is a fatal setup error: the decoder must not run without a
// loaded calibration.
func LoadCalibration(path string) (*Calibration, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration file %s: %w", path, err)
	}
	defer file.Close()

	calib, err := readCalibration(file)
	if err != nil {
		return nil, fmt.Errorf("invalid calibration file %s: %v", path, err)
	}
	return calib, nil
}

// LoadEmbeddedCalibration loads the factory default correction table shipped
// with the package, mirroring the original driver's packaged CSV fallback.
func LoadEmbeddedCalibration() (*Calibration, error) {
	file, err := embeddedConfigs.Open("sensor_configs/Pandar40_Correction.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded calibration: %v", err)
	}
	defer file.Close()

	return readCalibration(file)
}

// readCalibration parses an ordered correction record set (shared by file and
// embedded loading).
func readCalibration(r io.Reader) (*Calibration, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %v", err)
	}
	return parseCorrections(records)
}

// parseCorrections converts CSV records into a Calibration.
// Expected header: Laser,Elevation,Azimuth,Distance,HorizontalOffset,VerticalOffset
func parseCorrections(records [][]string) (*Calibration, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in correction file: need a header and at least one record")
	}

	header := records[0]
	if len(header) != 6 ||
		strings.ToLower(header[0]) != "laser" ||
		strings.ToLower(header[1]) != "elevation" ||
		strings.ToLower(header[2]) != "azimuth" ||
		strings.ToLower(header[3]) != "distance" ||
		strings.ToLower(header[4]) != "horizontaloffset" ||
		strings.ToLower(header[5]) != "verticaloffset" {
		return nil, fmt.Errorf("invalid header in correction file, expected: Laser,Elevation,Azimuth,Distance,HorizontalOffset,VerticalOffset")
	}

	calib := &Calibration{}
	for i, record := range records[1:] {
		if len(record) != 6 {
			return nil, fmt.Errorf("invalid record at line %d: expected 6 fields, got %d", i+2, len(record))
		}

		laser, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid laser number at line %d: %v", i+2, err)
		}
		if laser < 1 || laser > LASER_COUNT {
			return nil, fmt.Errorf("laser number %d out of range (1-%d) at line %d", laser, LASER_COUNT, i+2)
		}

		var fields [5]float64
		for f := 1; f <= 5; f++ {
			fields[f-1], err = strconv.ParseFloat(record[f], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value in field %d at line %d: %v", f, i+2, err)
			}
		}

		elevationRad := fields[0] * math.Pi / 180.0
		calib.Corrections[laser-1] = LaserCorrection{
			Laser:                      laser,
			ElevationAngle:             fields[0],
			AzimuthCorrection:          fields[1],
			DistanceCorrection:         fields[2],
			HorizontalOffsetCorrection: fields[3],
			VerticalOffsetCorrection:   fields[4],
			SinVertCorrection:          math.Sin(elevationRad),
			CosVertCorrection:          math.Cos(elevationRad),
		}
		calib.numLasers++
	}

	if calib.numLasers == 0 {
		return nil, fmt.Errorf("correction file contains no laser records")
	}
	return calib, nil
}

// Validate checks that the calibration covers every wire-format channel.
// A count mismatch between the correction table and the packet layout is a
// configuration error surfaced at setup, not deferred to per-point decode.
func (c *Calibration) Validate() error {
	if c.numLasers != LASER_COUNT {
		return fmt.Errorf("calibration has %d lasers, packet format requires %d", c.numLasers, LASER_COUNT)
	}
	for i := 0; i < LASER_COUNT; i++ {
		if c.Corrections[i].Laser == 0 {
			return fmt.Errorf("missing correction for laser %d", i+1)
		}
	}
	return nil
}
