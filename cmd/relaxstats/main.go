package main

import (
	"flag"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/SJTUGuofei/so3mip"
	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

const defaultScenario = "~~unset~~"

var (
	scenario  string
	intervals int
	verbose   bool
)

func init() {
	// Read flags
	flag.StringVar(&scenario, "scenario", defaultScenario, "relaxation scenario TOML file")
	flag.IntVar(&intervals, "n", 0, "intervals per half axis (overrides the scenario)")
	flag.BoolVar(&verbose, "verbose", false, "log the envelope construction")
}

func main() {
	// Read the configuration file.
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	scenario = strings.Replace(scenario, ".toml", "", 1)
	viper.AddConfigPath(".")
	viper.SetConfigName(scenario)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("./%s.toml: Error %s", scenario, err)
	}
	// Read scenario
	if intervals == 0 {
		intervals = viper.GetInt("relaxation.intervals")
	}
	if intervals < 1 {
		log.Fatalf("invalid interval count %d", intervals)
	}
	limits := readLimits()
	if verbose {
		log.Printf("[conf] intervals per half axis: %d\n", intervals)
		log.Printf("[conf] RPY limits: %s\n", limitNames(limits))
	}

	p := so3mip.NewProgram()
	if verbose {
		p.SetLogger(kitlog.NewLogfmtLogger(os.Stderr))
	}
	R := so3mip.NewRotationMatrixVars(p, "R")
	start := time.Now()
	B, err := so3mip.AddRotationMatrixMcCormickEnvelopeMilpConstraints(p, R, intervals, limits)
	if err != nil {
		log.Fatalf("cannot build the relaxation: %s", err)
	}
	log.Printf("[info] built in %s\n", time.Since(start))
	log.Printf("[info] binary digit matrices: %d\n", len(B))
	log.Printf("[info] variables: %d\n", p.NumVariables())
	log.Printf("[info] linear constraints: %d\n", p.NumLinearConstraints())
	log.Printf("[info] cone constraints: %d\n", p.NumConeConstraints())
	misses, touches, crosses := classifyCells(intervals)
	log.Printf("[info] grid cells off the sphere: %d\n", misses)
	log.Printf("[info] grid cells touching at a corner: %d\n", touches)
	log.Printf("[info] grid cells crossing the sphere: %d\n", crosses)
}

// classifyCells counts how the n³ positive-octant cells sit against the
// unit sphere.
func classifyCells(n int) (misses, touches, crosses int) {
	const tol = 1e-14
	norm := func(x, y, z float64) float64 {
		return math.Sqrt(x*x + y*y + z*z)
	}
	for xi := 0; xi < n; xi++ {
		for yi := 0; yi < n; yi++ {
			for zi := 0; zi < n; zi++ {
				lo := norm(float64(xi)/float64(n), float64(yi)/float64(n), float64(zi)/float64(n))
				hi := norm(float64(xi+1)/float64(n), float64(yi+1)/float64(n), float64(zi+1)/float64(n))
				switch {
				case lo > 1+tol || hi < 1-tol:
					misses++
				case math.Abs(lo-1) < tol || math.Abs(hi-1) < tol:
					touches++
				default:
					crosses++
				}
			}
		}
	}
	return misses, touches, crosses
}
