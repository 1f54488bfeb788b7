package effectmodel

type WorkerConfig struct {
	BufferSize int // default: 1
	NumWorkers int // default: 1
}

func NewWorkerConfig(bufferSize int, numWorkers int) WorkerConfig {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return WorkerConfig{
		BufferSize: bufferSize,
		NumWorkers: numWorkers,
	}
}

type Partitionable interface {
	PartitionKey() string
}
