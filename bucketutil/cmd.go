/*
Copyright © 2019 the Bucket authors.
This file is part of Bucket.

Bucket is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Bucket is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Bucket.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package bucketutil provides the command-line interface for running
// bucket resampling jobs.
package bucketutil

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/sparse"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/spatialmodel/bucket"
	"github.com/spatialmodel/bucket/lazy"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var logger *logrus.Logger

// Root is the main command.
var Root = &cobra.Command{
	Use:   "bucket",
	Short: "Bucket aggregates geolocated samples onto a projected grid.",
	Long: `Bucket performs bucket resampling: it projects irregularly
distributed geolocated samples (for example satellite swath pixels) onto a
regular grid and computes per-cell aggregate statistics.`,
	SilenceUsage: true,
}

var resampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Aggregate swath samples onto the target grid.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return Resample(cfg)
	},
}

func init() {
	logger = logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})

	Cfg = viper.New()
	Cfg.SetEnvPrefix("BUCKET")

	Root.PersistentFlags().String("config", "", "path to the TOML configuration file")
	resampleCmd.Flags().String("stat", "", "statistic to compute: sum, count, or average (overrides the configuration file)")
	resampleCmd.Flags().String("fill", "", "fill value for empty cells when averaging (overrides the configuration file)")
	resampleCmd.Flags().String("out", "", "output NetCDF file (overrides the configuration file)")
	Cfg.BindPFlag("config", Root.PersistentFlags().Lookup("config"))
	Cfg.BindPFlag("stat", resampleCmd.Flags().Lookup("stat"))
	Cfg.BindPFlag("fill", resampleCmd.Flags().Lookup("fill"))
	Cfg.BindPFlag("out", resampleCmd.Flags().Lookup("out"))

	Root.AddCommand(resampleCmd)
}

// loadConfig reads the configuration file named by the --config flag and
// applies any command-line overrides.
func loadConfig() (*Config, error) {
	path := Cfg.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("bucketutil: no configuration file; use the --config flag")
	}
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if s := Cfg.GetString("stat"); s != "" {
		cfg.Statistic = s
	}
	if s := Cfg.GetString("fill"); s != "" {
		fill, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("bucketutil: problem parsing fill value %q: %v", s, err)
		}
		cfg.FillValue = &fill
	}
	if s := Cfg.GetString("out"); s != "" {
		cfg.OutFile = s
	}
	return cfg, nil
}

// Resample runs the resampling job described by cfg.
func Resample(cfg *Config) error {
	grid, err := cfg.Grid.GridDef()
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.InFile)
	if err != nil {
		return fmt.Errorf("bucketutil: problem opening input file: %v", err)
	}
	defer f.Close()

	logger.Infof("reading swath variables %s, %s, %s from %s",
		cfg.LonVar, cfg.LatVar, cfg.DataVar, cfg.InFile)
	lonsDense, err := bucket.ReadVar(f, cfg.LonVar)
	if err != nil {
		return err
	}
	latsDense, err := bucket.ReadVar(f, cfg.LatVar)
	if err != nil {
		return err
	}
	lons := lazy.FromDense(lonsDense)
	lats := lazy.FromDense(latsDense)

	var data *lazy.Array
	if cfg.Statistic != "count" {
		dataDense, err := bucket.ReadVar(f, cfg.DataVar)
		if err != nil {
			return err
		}
		data = lazy.FromDense(dataDense)
	}

	r := bucket.NewResampler(grid)
	var result *lazy.Array
	switch cfg.Statistic {
	case "sum":
		result, err = r.Sum(data, lons, lats, nil)
	case "count":
		result, err = r.Count(lons, lats, nil)
	case "average":
		fill := math.NaN()
		if cfg.FillValue != nil {
			fill = *cfg.FillValue
		}
		result, err = r.Average(data, lons, lats, nil, fill)
	default:
		return fmt.Errorf("bucketutil: unknown statistic %q; valid choices are sum, count, and average", cfg.Statistic)
	}
	if err != nil {
		return err
	}

	logger.Infof("aggregating %d samples onto grid %s (%d×%d)",
		lons.Len(), grid.Name, grid.Ny, grid.Nx)
	start := time.Now()
	gridded, err := result.Materialize(context.Background())
	if err != nil {
		return err
	}
	logger.Infof("aggregation finished in %v", time.Since(start))

	w, err := os.Create(cfg.OutFile)
	if err != nil {
		return fmt.Errorf("bucketutil: problem creating output file: %v", err)
	}
	defer w.Close()
	if err := bucket.WriteGrid(w, grid, map[string]*sparse.DenseArray{cfg.Statistic: gridded}); err != nil {
		return err
	}
	logger.Infof("wrote %s to %s", cfg.Statistic, cfg.OutFile)
	return nil
}
