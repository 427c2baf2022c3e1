package fscrypt

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// ParallelConfig controls EncryptFiles/DecryptFiles' use of concurrent
// workers across independent files. The single-file pump in facade.go never
// spawns internal tasks; this is the package's one sanctioned point of
// multi-file parallelism.
type ParallelConfig struct {
	// Enabled turns on worker-pool processing. When false, EncryptFiles and
	// DecryptFiles process their job list sequentially on the caller's
	// goroutine.
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines. If 0, defaults
	// to runtime.NumCPU().
	MaxWorkers int

	// MinFilesForParallel is the minimum job count before worker-pool
	// processing kicks in. Below this, sequential processing is used even
	// when Enabled is true, since pool setup overhead dominates for a
	// handful of files.
	MinFilesForParallel int
}

// Validate checks p's bounds. A disabled config is always valid.
func (p ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.MaxWorkers < 0 {
		return NewValidationError("maxWorkers", p.MaxWorkers, "parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return NewValidationError("maxWorkers", p.MaxWorkers, "parallel max workers must not exceed 1024")
	}
	if p.MinFilesForParallel < 1 {
		return NewValidationError("minFilesForParallel", p.MinFilesForParallel, "parallel min files threshold must be at least 1")
	}
	if p.MinFilesForParallel > 1000 {
		return NewValidationError("minFilesForParallel", p.MinFilesForParallel, "parallel min files threshold must not exceed 1000")
	}
	return nil
}

// DefaultParallelConfig returns the default multi-file parallel processing
// configuration.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:             true,
		MaxWorkers:          runtime.NumCPU(),
		MinFilesForParallel: 4,
	}
}

// EncryptJob names one file to encrypt: SrcPath's contents are encrypted
// under Password and written to DstPath.
type EncryptJob struct {
	SrcPath  string
	DstPath  string
	Password []byte
	Options  EncryptOptions
}

// EncryptResult is EncryptFiles' per-job outcome. Exactly one of Manifest/Err
// is meaningful, matching Job's position in the input slice.
type EncryptResult struct {
	Job      EncryptJob
	Manifest Manifest
	Err      error
}

// DecryptJob names one file to decrypt: SrcPath's contents are decrypted
// under Password and written to DstPath.
type DecryptJob struct {
	SrcPath  string
	DstPath  string
	Password []byte
	Options  DecryptOptions
}

// DecryptResult is DecryptFiles' per-job outcome.
type DecryptResult struct {
	Job DecryptJob
	Err error
}

// EncryptFiles runs EncryptFile over every job, using cfg to decide whether
// to fan the work out across a worker pool. Results are returned in the same
// order as jobs regardless of execution order.
func EncryptFiles(jobs []EncryptJob, cfg ParallelConfig) []EncryptResult {
	results := make([]EncryptResult, len(jobs))
	run := func(i int) {
		job := jobs[i]
		defer func() {
			if r := recover(); r != nil {
				results[i] = EncryptResult{Job: job, Err: fmt.Errorf("fscrypt: panic in encrypt job: %v", r)}
			}
		}()
		manifest, err := encryptJobFile(job)
		results[i] = EncryptResult{Job: job, Manifest: manifest, Err: err}
	}

	if !shouldParallelize(cfg, len(jobs)) {
		for i := range jobs {
			run(i)
		}
		return results
	}
	runWorkerPool(len(jobs), workerCount(cfg, len(jobs)), run)
	return results
}

// DecryptFiles runs DecryptFile over every job, using cfg to decide whether
// to fan the work out across a worker pool. Results are returned in the same
// order as jobs regardless of execution order.
func DecryptFiles(jobs []DecryptJob, cfg ParallelConfig) []DecryptResult {
	results := make([]DecryptResult, len(jobs))
	run := func(i int) {
		job := jobs[i]
		defer func() {
			if r := recover(); r != nil {
				results[i] = DecryptResult{Job: job, Err: fmt.Errorf("fscrypt: panic in decrypt job: %v", r)}
			}
		}()
		results[i] = DecryptResult{Job: job, Err: decryptJobFile(job)}
	}

	if !shouldParallelize(cfg, len(jobs)) {
		for i := range jobs {
			run(i)
		}
		return results
	}
	runWorkerPool(len(jobs), workerCount(cfg, len(jobs)), run)
	return results
}

func shouldParallelize(cfg ParallelConfig, n int) bool {
	if err := cfg.Validate(); err != nil {
		return false
	}
	return cfg.Enabled && n >= cfg.MinFilesForParallel
}

func workerCount(cfg ParallelConfig, n int) int {
	w := cfg.MaxWorkers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	return w
}

// runWorkerPool distributes indices [0,n) across numWorkers goroutines,
// running fn(i) for each. fn is responsible for recovering its own panics
// and recording them as that index's result, the same way EncryptFiles and
// DecryptFiles do, so one bad job can't take down the whole batch or leave
// its result slot silently empty.
func runWorkerPool(n, numWorkers int, fn func(i int)) {
	if n == 0 {
		return
	}
	indexChan := make(chan int, n)
	for i := 0; i < n; i++ {
		indexChan <- i
	}
	close(indexChan)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				fn(idx)
			}
		}()
	}
	wg.Wait()
}

func encryptJobFile(job EncryptJob) (Manifest, error) {
	if err := ValidateFilePath(job.SrcPath); err != nil {
		return Manifest{}, err
	}
	if err := ValidateFilePath(job.DstPath); err != nil {
		return Manifest{}, err
	}

	src, err := os.Open(job.SrcPath)
	if err != nil {
		return Manifest{}, NewIOError("open", job.SrcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(job.DstPath)
	if err != nil {
		return Manifest{}, NewIOError("create", job.DstPath, err)
	}

	manifest, err := EncryptFile(job.Password, src, dst, job.Options)
	if err != nil {
		dst.Close()
		os.Remove(job.DstPath)
		return Manifest{}, NewEncryptionError("encrypt", job.SrcPath, err)
	}
	return manifest, dst.Close()
}

func decryptJobFile(job DecryptJob) error {
	if err := ValidateFilePath(job.SrcPath); err != nil {
		return err
	}
	if err := ValidateFilePath(job.DstPath); err != nil {
		return err
	}

	src, err := os.Open(job.SrcPath)
	if err != nil {
		return NewIOError("open", job.SrcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(job.DstPath)
	if err != nil {
		return NewIOError("create", job.DstPath, err)
	}

	if err := DecryptFile(job.Password, src, dst, job.Options); err != nil {
		dst.Close()
		os.Remove(job.DstPath)
		return NewEncryptionError("decrypt", job.SrcPath, err)
	}
	return dst.Close()
}
