// Command emitter-report runs the emitter identification pipeline over a
// PDW capture: slice the stream, cluster each slice, classify and score the
// clusters, extract emitter parameters, and persist the sessions.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/banshee-data/emitter.report/internal/config"
	"github.com/banshee-data/emitter.report/internal/emitter"
	"github.com/banshee-data/emitter.report/internal/emitter/storage/sqlite"
	"github.com/banshee-data/emitter.report/internal/emitter/task"
	"github.com/banshee-data/emitter.report/internal/pdw"
	"github.com/banshee-data/emitter.report/internal/version"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "PDW capture CSV: cf_mhz,pw_us,doa_deg,pa_db,toa_ms per line")
		dbPath      = flag.String("db", "", "sqlite database for session results (omit to skip persistence)")
		configPath  = flag.String("config", "", "optional tuning config JSON")
		verbose     = flag.Bool("v", false, "log pipeline diagnostics")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("emitter-report", version.String())
		return
	}
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: emitter-report -input capture.csv [-db results.db] [-config tuning.json]")
		os.Exit(2)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
	}

	pulses, err := readPulses(*inputPath)
	if err != nil {
		fatalf("read input: %v", err)
	}
	pdw.SortByTOA(pulses)
	slices := pdw.SliceStream(pulses, cfg.GetSliceLengthMs())
	fmt.Printf("loaded %d pulses into %d slices\n", len(pulses), len(slices))

	var sink emitter.ResultSink
	if *dbPath != "" {
		db, err := sqlite.Open(*dbPath)
		if err != nil {
			fatalf("open database: %v", err)
		}
		defer db.Close()
		sink = sqlite.NewSessionStore(db)
	}

	exec, err := buildExecutor(cfg, sink)
	if err != nil {
		fatalf("build pipeline: %v", err)
	}

	sched, err := task.NewTaskScheduler(cfg.GetMaxConcurrentTasks())
	if err != nil {
		fatalf("start scheduler: %v", err)
	}
	defer sched.Shutdown(5 * time.Second)

	var tasks []*task.RecognitionTask
	for _, slice := range slices {
		tk := exec.NewSliceTask(slice, task.PriorityNormal)
		if err := sched.Submit(tk); err != nil {
			fatalf("submit slice %d: %v", slice.Index, err)
		}
		tasks = append(tasks, tk)
	}

	for _, tk := range tasks {
		for !tk.Status().IsTerminal() {
			time.Sleep(20 * time.Millisecond)
		}
		report(tk, *verbose)
	}
}

func report(tk *task.RecognitionTask, verbose bool) {
	session := tk.Session()
	if tk.Status() != task.StatusCompleted {
		fmt.Printf("slice %d: %s %s\n", session.SliceIndex, tk.Status(), tk.Err())
		return
	}
	st := session.Stats()
	fmt.Printf("slice %d [%s-band]: %d pulses, %d clusters (%d valid), %d passed, %d noise\n",
		session.SliceIndex, session.Band, st.TotalPulses,
		st.CFClusters+st.PWClusters, st.ValidClusters, st.Passed, st.NoisePulses)
	for _, r := range session.PassedResults() {
		fmt.Printf("  cluster %d (%s, %d pulses) p=%.3f  CF=%v MHz  PW=%v us  PRI=%v us  DOA=%v deg\n",
			r.Candidate.ClusterIndex, r.Candidate.Dimension, r.Candidate.Size(),
			r.JointProbability, r.Params.CF, r.Params.PW, r.Params.PRI, r.Params.DOA)
		if verbose {
			printRasterDensity(r.Candidate)
		}
	}
}

// printRasterDensity summarizes every feature raster of a cluster, a quick
// text stand-in for the archived cluster plots.
func printRasterDensity(c *emitter.ClusterCandidate) {
	imgs, err := emitter.NewRasterEncoder().EncodeAll(c)
	if err != nil {
		fmt.Printf("    rasters unavailable: %v\n", err)
		return
	}
	for _, feat := range []emitter.Feature{emitter.FeaturePA, emitter.FeatureDTOA, emitter.FeatureCF, emitter.FeaturePW, emitter.FeatureDOA} {
		img, ok := imgs[feat]
		if !ok {
			continue
		}
		fmt.Printf("    %-4s raster %dx%d, %d px set\n", feat, img.Width, img.Height, img.Ones())
	}
}

func buildExecutor(cfg *config.TuningConfig, sink emitter.ResultSink) (*task.Executor, error) {
	pipeline, err := emitter.NewClusterPipeline(cfg.ClusteringParams())
	if err != nil {
		return nil, err
	}
	scoring := cfg.ScoringParams()
	scorer, err := emitter.NewJointScorer(scoring)
	if err != nil {
		return nil, err
	}
	// Stand-in classifiers until a model backend is wired in: they rate a
	// raster by how line-like its pixel distribution is, which keeps the
	// port exercised end to end.
	pa, err := emitter.NewPAChannel(&densityClassifier{classes: emitter.PAClassCount}, scoring.PAConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	dtoa, err := emitter.NewDTOAChannel(&densityClassifier{classes: emitter.DTOAClassCount}, scoring.DTOAConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	extractor, err := emitter.NewParameterExtractor(emitter.DefaultExtractorParams())
	if err != nil {
		return nil, err
	}
	return task.NewExecutor(pipeline, emitter.NewRasterEncoder(), pa, dtoa, scorer, extractor, sink)
}

// densityClassifier votes class 0 with confidence proportional to how
// tightly the set pixels concentrate in few rows. Radar-like rasters are
// near-horizontal traces; scattered clutter spreads over many rows.
type densityClassifier struct {
	classes int
}

func (d *densityClassifier) Predict(img *emitter.BinaryImage) (emitter.Prediction, error) {
	rows := 0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.At(x, y) {
				rows++
				break
			}
		}
	}
	ones := img.Ones()
	if ones == 0 {
		return emitter.Prediction{Label: d.classes - 1, Confidence: 0}, nil
	}
	conf := 1.0 - float64(rows)/float64(img.Height)
	label := 0
	if conf < 0.5 {
		label = d.classes - 1
	}
	return emitter.Prediction{Label: label, Confidence: conf}, nil
}

// readPulses parses a CSV capture with columns cf_mhz,pw_us,doa_deg,pa_db,toa_ms.
// A header row is skipped if present.
func readPulses(path string) ([]pdw.Pulse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5
	var pulses []pdw.Pulse
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		vals := make([]float64, 5)
		ok := true
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: non-numeric field", line)
		}
		pulses = append(pulses, pdw.Pulse{CF: vals[0], PW: vals[1], DOA: vals[2], PA: vals[3], TOA: vals[4]})
	}
	return pulses, nil
}

func fatalf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "emitter-report: "+format+"\n", v...)
	os.Exit(1)
}
