package granary

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/granarydata/granary/internal/pkg/granfs"
)

// Job is the logical container for a MapReduce job
type Job struct {
	Map    Mapper
	Reduce Reducer

	fileSystem       granfs.FileSystem
	config           *config
	intermediateBins uint
	outputPath       string

	bytesRead    int64
	bytesWritten int64
}

// NewJob creates a new job from a Mapper and Reducer.
func NewJob(mapper Mapper, reducer Reducer) *Job {
	return &Job{
		Map:    mapper,
		Reduce: reducer,
	}
}

// splitInputRecord splits a line of mapper input into a key-value pair.
// Lines of the form "key\tvalue" are split on the tab. Any other shape is
// treated as a value with an empty key.
func splitInputRecord(record string) keyValue {
	fields := strings.Split(record, "\t")
	if len(fields) == 2 {
		return keyValue{
			Key:   fields[0],
			Value: fields[1],
		}
	}
	return keyValue{
		Value: record,
	}
}

func (j *Job) runMapper(mapperID uint, splits []inputSplit) error {
	emitter := newMapperEmitter(j.intermediateBins, mapperID, j.outputPath, j.fileSystem)

	for _, split := range splits {
		err := j.runMapperSplit(split, &emitter)
		if err != nil {
			return err
		}
	}

	atomic.AddInt64(&j.bytesWritten, emitter.bytesWritten())

	return emitter.close()
}

// runMapperSplit runs the mapper on a single inputSplit
func (j *Job) runMapperSplit(split inputSplit, emitter Emitter) error {
	inputSource, err := j.fileSystem.OpenReader(split.Filename, split.StartOffset)
	if err != nil {
		return err
	}
	defer inputSource.Close()

	var bytesRead int64
	splitter := countingSplitFunc(bufio.ScanLines, &bytesRead)
	scanner := bufio.NewScanner(inputSource)
	scanner.Split(splitter)

	if split.StartOffset != 0 {
		// The record at the head of the split was consumed by the mapper
		// of the preceding split, which reads one record past its end.
		scanner.Scan()
	}

	for scanner.Scan() {
		record := scanner.Text()
		kv := splitInputRecord(record)
		j.Map.Map(kv.Key, kv.Value, emitter)

		// Stop reading when end of inputSplit is reached
		if bytesRead > split.Size() {
			break
		}
	}

	atomic.AddInt64(&j.bytesRead, bytesRead)

	return scanner.Err()
}

// runReducer runs the reducer for a single intermediate shuffle bin
func (j *Job) runReducer(binID uint) error {
	// Determine the intermediate data files this reducer is responsible for
	intermediateGlob := j.fileSystem.Join(j.outputPath, fmt.Sprintf("map-bin%d-*", binID))
	intermediateFiles, err := j.fileSystem.ListFiles(intermediateGlob)
	if err != nil {
		return err
	}

	// Open emitter for output data
	outputPath := j.fileSystem.Join(j.outputPath, fmt.Sprintf("output-part-%d", binID))
	emitWriter, err := j.fileSystem.OpenWriter(outputPath)
	if err != nil {
		return err
	}
	emitter := newReducerEmitter(emitWriter)

	keyChannels := make(map[string]chan string)
	var waitGroup sync.WaitGroup

	for _, file := range intermediateFiles {
		reader, err := j.fileSystem.OpenReader(file.Name, 0)
		if err != nil {
			return err
		}
		log.Debugf("Reducing on intermediate file: %s", file.Name)

		// Feed intermediate data into reducers
		decoder := json.NewDecoder(reader)
		for decoder.More() {
			var kv keyValue
			if err := decoder.Decode(&kv); err != nil {
				reader.Close()
				return err
			}

			// Create a reducer for the current key if necessary
			keyChan, exists := keyChannels[kv.Key]
			if !exists {
				keyChan = make(chan string)
				keyIter := newValueIterator(keyChan)
				keyChannels[kv.Key] = keyChan

				waitGroup.Add(1)
				go func(key string) {
					defer waitGroup.Done()
					j.Reduce.Reduce(key, keyIter, emitter)
				}(kv.Key)
			}

			// Pass current value to the appropriate key channel
			keyChan <- kv.Value
		}
		reader.Close()
	}

	// Close key channels to signal that all intermediate data has been read
	for _, keyChan := range keyChannels {
		close(keyChan)
	}
	waitGroup.Wait()

	atomic.AddInt64(&j.bytesWritten, emitter.bytesWritten())

	if err := emitter.close(); err != nil {
		return err
	}

	if j.config != nil && j.config.Cleanup {
		for _, file := range intermediateFiles {
			if err := j.fileSystem.Delete(file.Name); err != nil {
				log.Warnf("Unable to clean up intermediate file %s: %s", file.Name, err)
			}
		}
	}

	return nil
}

// inputSplits calculates all input files' inputSplits. An input path that
// matches no files is an error: a job that silently reads nothing would
// report success with an empty result.
// inputSplits also determines and saves the number of intermediate bins that will be used during the shuffle.
func (j *Job) inputSplits(inputs []string, maxSplitSize int64) ([]inputSplit, error) {
	files := make([]string, 0)
	for _, inputPath := range inputs {
		fileInfos, err := j.fileSystem.ListFiles(inputPath)
		if err != nil {
			return nil, fmt.Errorf("unable to list input %s: %s", inputPath, err)
		}
		if len(fileInfos) == 0 {
			return nil, fmt.Errorf("input %s matched no files", inputPath)
		}

		for _, fInfo := range fileInfos {
			files = append(files, fInfo.Name)
		}
	}

	splits := make([]inputSplit, 0)
	var totalSize int64
	for _, inputFileName := range files {
		fInfo, err := j.fileSystem.Stat(inputFileName)
		if err != nil {
			return nil, fmt.Errorf("unable to stat input file %s: %s", inputFileName, err)
		}

		totalSize += fInfo.Size
		splits = append(splits, splitInputFile(fInfo, maxSplitSize)...)
	}
	if len(splits) > 0 {
		log.Debugf("Average split size: %s", humanize.Bytes(uint64(totalSize/int64(len(splits)))))
	}

	j.intermediateBins = uint(totalSize/j.config.ReduceBinSize) + 1

	return splits, nil
}
