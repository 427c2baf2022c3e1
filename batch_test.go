package fscrypt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestEncryptFilesDecryptFiles_Sequential(t *testing.T) {
	dir := t.TempDir()
	plaintexts := [][]byte{
		[]byte("alpha"),
		[]byte("bravo bravo bravo"),
		{},
	}

	var encJobs []EncryptJob
	for i, p := range plaintexts {
		src := writeTempFile(t, dir, "plain"+string(rune('0'+i)), p)
		encJobs = append(encJobs, EncryptJob{
			SrcPath:  src,
			DstPath:  filepath.Join(dir, "cipher"+string(rune('0'+i))),
			Password: []byte("correct horse battery staple"),
			Options:  DefaultEncryptOptions(),
		})
	}

	cfg := ParallelConfig{Enabled: false}
	encResults := EncryptFiles(encJobs, cfg)
	if len(encResults) != len(encJobs) {
		t.Fatalf("got %d results, want %d", len(encResults), len(encJobs))
	}
	for i, res := range encResults {
		if res.Err != nil {
			t.Fatalf("job %d: EncryptFiles error: %v", i, res.Err)
		}
	}

	var decJobs []DecryptJob
	for i, job := range encJobs {
		decJobs = append(decJobs, DecryptJob{
			SrcPath:  job.DstPath,
			DstPath:  filepath.Join(dir, "roundtrip"+string(rune('0'+i))),
			Password: []byte("correct horse battery staple"),
		})
	}
	decResults := DecryptFiles(decJobs, cfg)
	for i, res := range decResults {
		if res.Err != nil {
			t.Fatalf("job %d: DecryptFiles error: %v", i, res.Err)
		}
		got, err := os.ReadFile(decJobs[i].DstPath)
		if err != nil {
			t.Fatalf("job %d: failed to read roundtrip output: %v", i, err)
		}
		if !bytes.Equal(got, plaintexts[i]) {
			t.Errorf("job %d: roundtrip mismatch: got %q, want %q", i, got, plaintexts[i])
		}
	}
}

func TestEncryptFilesDecryptFiles_Parallel(t *testing.T) {
	dir := t.TempDir()
	const numFiles = 8
	plaintexts := make([][]byte, numFiles)
	var encJobs []EncryptJob
	for i := 0; i < numFiles; i++ {
		plaintexts[i] = bytes.Repeat([]byte{byte(i)}, 1024*(i+1))
		src := writeTempFile(t, dir, "p"+string(rune('a'+i)), plaintexts[i])
		encJobs = append(encJobs, EncryptJob{
			SrcPath:  src,
			DstPath:  filepath.Join(dir, "c"+string(rune('a'+i))),
			Password: []byte("batch password"),
			Options:  DefaultEncryptOptions(),
		})
	}

	cfg := ParallelConfig{Enabled: true, MaxWorkers: 4, MinFilesForParallel: 2}
	encResults := EncryptFiles(encJobs, cfg)

	var decJobs []DecryptJob
	for i, res := range encResults {
		if res.Err != nil {
			t.Fatalf("job %d: EncryptFiles error: %v", i, res.Err)
		}
		decJobs = append(decJobs, DecryptJob{
			SrcPath:  encJobs[i].DstPath,
			DstPath:  filepath.Join(dir, "r"+string(rune('a'+i))),
			Password: []byte("batch password"),
		})
	}
	decResults := DecryptFiles(decJobs, cfg)
	for i, res := range decResults {
		if res.Err != nil {
			t.Fatalf("job %d: DecryptFiles error: %v", i, res.Err)
		}
		got, err := os.ReadFile(decJobs[i].DstPath)
		if err != nil {
			t.Fatalf("job %d: failed to read roundtrip output: %v", i, err)
		}
		if !bytes.Equal(got, plaintexts[i]) {
			t.Errorf("job %d: roundtrip mismatch for %d-byte plaintext", i, len(plaintexts[i]))
		}
	}
}

func TestEncryptFiles_WrongPasswordFails(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, "secret.txt", []byte("top secret"))
	encJobs := []EncryptJob{{
		SrcPath:  src,
		DstPath:  filepath.Join(dir, "secret.enc"),
		Password: []byte("right password"),
		Options:  DefaultEncryptOptions(),
	}}
	cfg := ParallelConfig{Enabled: false}
	if res := EncryptFiles(encJobs, cfg); res[0].Err != nil {
		t.Fatalf("EncryptFiles error: %v", res[0].Err)
	}

	decJobs := []DecryptJob{{
		SrcPath:  filepath.Join(dir, "secret.enc"),
		DstPath:  filepath.Join(dir, "secret.dec"),
		Password: []byte("wrong password"),
	}}
	res := DecryptFiles(decJobs, cfg)
	if res[0].Err == nil {
		t.Fatal("DecryptFiles with wrong password should fail")
	}
}

func TestParallelConfig_DisabledAlwaysSequential(t *testing.T) {
	cfg := ParallelConfig{Enabled: false, MaxWorkers: -5, MinFilesForParallel: 0}
	if shouldParallelize(cfg, 100) {
		t.Error("disabled config should never parallelize")
	}
}

func TestWorkerCount(t *testing.T) {
	cfg := ParallelConfig{Enabled: true, MaxWorkers: 16}
	if got := workerCount(cfg, 3); got != 3 {
		t.Errorf("workerCount capped by job count: got %d, want 3", got)
	}
	cfg.MaxWorkers = 0
	if got := workerCount(cfg, 3); got <= 0 {
		t.Errorf("workerCount with MaxWorkers=0 should default to NumCPU: got %d", got)
	}
}
