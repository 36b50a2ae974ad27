package granary

// executor runs individual map and reduce tasks of a job
type executor interface {
	RunMapper(job *Job, binID uint, inputSplits []inputSplit) error
	RunReducer(job *Job, binID uint) error
}

// localExecutor runs tasks in-process, one goroutine per task
type localExecutor struct{}

func (localExecutor) RunMapper(job *Job, binID uint, inputSplits []inputSplit) error {
	return job.runMapper(binID, inputSplits)
}

func (localExecutor) RunReducer(job *Job, binID uint) error {
	return job.runReducer(binID)
}
