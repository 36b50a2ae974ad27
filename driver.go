package granary

import (
	"context"
	"fmt"
	"sync"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/sync/semaphore"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/granarydata/granary/internal/pkg/granfs"
)

// Driver controls the execution of a MapReduce Job
type Driver struct {
	job      *Job
	config   *config
	executor executor
}

// config configures a Driver's execution of jobs
type config struct {
	Inputs          []string
	SplitSize       int64
	MapBinSize      int64
	ReduceBinSize   int64
	MaxConcurrency  int
	WorkingLocation string
	Cleanup         bool
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment
	return &config{
		Inputs:          []string{},
		SplitSize:       viper.GetInt64("split_size"),
		MapBinSize:      viper.GetInt64("map_bin_size"),
		ReduceBinSize:   viper.GetInt64("reduce_bin_size"),
		MaxConcurrency:  viper.GetInt("max_concurrency"),
		WorkingLocation: viper.GetString("working_location"),
		Cleanup:         viper.GetBool("cleanup"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver with the provided job and optional configuration
func NewDriver(job *Job, options ...Option) *Driver {
	d := &Driver{
		job:      job,
		executor: localExecutor{},
	}

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	if c.SplitSize > c.MapBinSize {
		log.Warn("Configured Split Size is larger than Map Bin size")
		c.SplitSize = c.MapBinSize
	}

	d.config = c
	log.Debugf("Loaded config: %#v", c)

	return d
}

// WithSplitSize sets the SplitSize of the Driver
func WithSplitSize(s int64) Option {
	return func(c *config) {
		c.SplitSize = s
	}
}

// WithMapBinSize sets the MapBinSize of the Driver
func WithMapBinSize(s int64) Option {
	return func(c *config) {
		c.MapBinSize = s
	}
}

// WithReduceBinSize sets the ReduceBinSize of the Driver
func WithReduceBinSize(s int64) Option {
	return func(c *config) {
		c.ReduceBinSize = s
	}
}

// WithWorkingLocation sets the location and filesystem backend of the Driver
func WithWorkingLocation(location string) Option {
	return func(c *config) {
		c.WorkingLocation = location
	}
}

// WithInputs specifies job inputs (i.e. input files/directories)
func WithInputs(inputs ...string) Option {
	return func(c *config) {
		c.Inputs = append(c.Inputs, inputs...)
	}
}

// WithCleanup sets whether intermediate shuffle files are deleted after the
// reduce phase.
func WithCleanup(cleanup bool) Option {
	return func(c *config) {
		c.Cleanup = cleanup
	}
}

// taskErrors records the first failure among a phase's concurrent tasks.
type taskErrors struct {
	mut sync.Mutex
	err error
}

func (t *taskErrors) record(err error) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (d *Driver) runMapPhase() error {
	inputSplits, err := d.job.inputSplits(d.config.Inputs, d.config.SplitSize)
	if err != nil {
		return err
	}
	if len(inputSplits) == 0 {
		log.Warnf("No input splits")
		return nil
	}
	log.Debugf("Number of job input splits: %d", len(inputSplits))

	inputBins := packInputSplits(inputSplits, d.config.MapBinSize)
	log.Debugf("Number of job input bins: %d", len(inputBins))
	bar := pb.New(len(inputBins)).Prefix("Map").Start()

	var wg sync.WaitGroup
	var errs taskErrors
	sem := semaphore.NewWeighted(int64(d.config.MaxConcurrency))
	for binID, bin := range inputBins {
		sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func(bID uint, b []inputSplit) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()
			err := d.executor.RunMapper(d.job, bID, b)
			if err != nil {
				log.Errorf("Error when running mapper %d: %s", bID, err)
				errs.record(fmt.Errorf("mapper %d: %s", bID, err))
			}
		}(uint(binID), bin)
	}
	wg.Wait()
	bar.Finish()
	return errs.err
}

func (d *Driver) runReducePhase() error {
	var wg sync.WaitGroup
	var errs taskErrors
	bar := pb.New(int(d.job.intermediateBins)).Prefix("Reduce").Start()
	sem := semaphore.NewWeighted(int64(d.config.MaxConcurrency))
	for binID := uint(0); binID < d.job.intermediateBins; binID++ {
		sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func(bID uint) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()
			err := d.executor.RunReducer(d.job, bID)
			if err != nil {
				log.Errorf("Error when running reducer %d: %s", bID, err)
				errs.record(fmt.Errorf("reducer %d: %s", bID, err))
			}
		}(binID)
	}
	wg.Wait()
	bar.Finish()
	return errs.err
}

// Run executes the Driver's job: the map phase followed by the reduce phase.
// Reducer output is left as output-part-* files in the working location.
// Run fails if any input matches no files or if any map or reduce task fails.
func (d *Driver) Run() error {
	if len(d.config.Inputs) == 0 {
		return fmt.Errorf("no inputs provided")
	}

	d.job.config = d.config
	d.job.fileSystem = granfs.InferFilesystem(d.config.Inputs[0])
	d.job.outputPath = d.config.WorkingLocation

	if err := d.runMapPhase(); err != nil {
		return err
	}
	log.Debugf("Map phase emitted %s", humanize.Bytes(uint64(d.job.bytesWritten)))
	return d.runReducePhase()
}
