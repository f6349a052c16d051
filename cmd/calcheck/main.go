// Command calcheck validates a Pandar40 correction CSV and prints the
// per-laser table it would load. It exits nonzero when the file cannot be
// used for decoding, which makes it usable as a deploy-time preflight.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/pandar40/pandar"
)

func main() {
	calibrationFile := flag.String("calibration", "", "path to a correction CSV (empty = embedded factory default)")
	quiet := flag.Bool("quiet", false, "suppress the per-laser table, only report validity")
	flag.Parse()

	var (
		calib *pandar.Calibration
		err   error
	)
	if *calibrationFile != "" {
		calib, err = pandar.LoadCalibration(*calibrationFile)
	} else {
		calib, err = pandar.LoadEmbeddedCalibration()
	}
	if err != nil {
		log.Fatalf("calibration load failed: %v", err)
	}

	if err := calib.Validate(); err != nil {
		log.Fatalf("calibration invalid: %v", err)
	}

	if !*quiet {
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LASER\tELEVATION\tAZIMUTH\tDISTANCE\tH-OFFSET\tV-OFFSET")
		for i := 0; i < calib.NumLasers(); i++ {
			c := calib.Correction(i)
			fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
				c.Laser, c.ElevationAngle, c.AzimuthCorrection,
				c.DistanceCorrection, c.HorizontalOffsetCorrection, c.VerticalOffsetCorrection)
		}
		w.Flush()
	}

	fmt.Printf("calibration OK: %d lasers\n", calib.NumLasers())
}
