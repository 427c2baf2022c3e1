package fscrypt

import (
	"errors"
	"io"
)

// StepType distinguishes a non-final pump step from the final one.
type StepType int

const (
	// StepNormal indicates Step should be called next.
	StepNormal StepType = iota
	// StepFinal indicates Finalize should be called next.
	StepFinal
)

// blockPump drives a StreamEncryption or StreamDecryption object one
// BlockSize block at a time, reading from a source and writing to a
// destination. current/total are the step counters: total is the number of
// full blocks expected before the final, possibly short or empty, block.
type blockPump struct {
	reader       io.Reader
	writer       io.Writer
	current      int64
	total        int64
	buf          []byte
	encryptNext  func([]byte) ([]byte, error)
	encryptLast  func([]byte) ([]byte, error)
	decryptNext  func([]byte) ([]byte, error)
	decryptLast  func([]byte) ([]byte, error)
	isEncryption bool
}

// newEncryptPump builds a pump that drives enc over src/dst. plaintextSize
// is the declared total plaintext length, used to compute how many full
// blocks precede the final block.
func newEncryptPump(enc *StreamEncryption, src io.Reader, dst io.Writer, plaintextSize int64) *blockPump {
	return &blockPump{
		reader:       src,
		writer:       dst,
		total:        fullBlockCount(plaintextSize),
		buf:          make([]byte, BlockSize),
		encryptNext:  enc.EncryptNext,
		encryptLast:  enc.EncryptLast,
		isEncryption: true,
	}
}

// newDecryptPump builds a pump that drives dec over src/dst. bodySize is the
// declared length, in bytes, of the ciphertext body (the file's total size
// minus the fixed header), used to compute how many full encrypted blocks
// precede the final block. Every final ciphertext block produced by this
// package is strictly shorter than BlockSize+AEADTagLen (its plaintext
// portion is < BlockSize, by construction of fullBlockCount), so
// bodySize/(BlockSize+AEADTagLen) recovers the exact number of full blocks
// with no rounding ambiguity.
func newDecryptPump(dec *StreamDecryption, src io.Reader, dst io.Writer, bodySize int64) *blockPump {
	fullCipherBlock := int64(BlockSize + AEADTagLen)
	total := int64(0)
	if bodySize > 0 {
		total = bodySize / fullCipherBlock
	}
	return &blockPump{
		reader:      src,
		writer:      dst,
		total:       total,
		buf:         make([]byte, BlockSize+AEADTagLen),
		decryptNext: dec.DecryptNext,
		decryptLast: dec.DecryptLast,
	}
}

// fullBlockCount returns how many full BlockSize blocks precede the final,
// possibly short or empty, block for a plaintext of the given size. Unlike
// the source this is grounded on (which computes ceil(size/BlockSize) and
// so counts a trailing partial block as one more Normal step, which Step
// would then reject as a short read), this is a plain floor division: the
// final block absorbs whatever is left over, always fewer than BlockSize
// bytes. On an exact multiple of BlockSize the final block is empty, so a
// single-block plaintext produces one Normal block followed by an empty,
// tag-only Final block.
func fullBlockCount(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return size / BlockSize
}

// StepType reports whether Step or Finalize should be called next.
func (p *blockPump) StepType() StepType {
	if p.current < p.total {
		return StepNormal
	}
	return StepFinal
}

// Step processes one full, non-final block. It is an error to call Step
// when StepType reports StepFinal.
func (p *blockPump) Step() error {
	if p.StepType() != StepNormal {
		return ErrIncorrectStep
	}

	readCount, err := io.ReadFull(p.reader, p.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrReadUnderflow
	}
	if err != nil {
		return NewIOError("read", "", err)
	}

	var out []byte
	if p.isEncryption {
		if readCount != BlockSize {
			return ErrReadUnderflow
		}
		out, err = p.encryptNext(p.buf[:readCount])
	} else {
		out, err = p.decryptNext(p.buf[:readCount])
	}
	wipe(p.buf[:readCount])
	if err != nil {
		if !p.isEncryption && errors.Is(err, ErrAuthFailed) {
			return NewAuthenticationError("", err)
		}
		return err
	}

	writeCount, err := p.writer.Write(out)
	if err != nil {
		return NewIOError("write", "", err)
	}
	if p.isEncryption {
		if writeCount != readCount+AEADTagLen {
			return ErrWriteMismatch
		}
	} else {
		if writeCount != readCount-AEADTagLen {
			return ErrWriteMismatch
		}
	}

	p.current++
	return nil
}

// Finalize processes the final, possibly short or empty, block and
// consumes the pump. It is an error to call Finalize before StepType
// reports StepFinal.
func (p *blockPump) Finalize() error {
	if p.StepType() != StepFinal {
		return ErrIncorrectStep
	}

	readCount, err := io.ReadFull(p.reader, p.buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return NewIOError("read", "", err)
	}

	var out []byte
	if p.isEncryption {
		out, err = p.encryptLast(p.buf[:readCount])
	} else {
		out, err = p.decryptLast(p.buf[:readCount])
	}
	wipe(p.buf[:readCount])
	if err != nil {
		if !p.isEncryption && errors.Is(err, ErrAuthFailed) {
			return NewAuthenticationError("", err)
		}
		return err
	}

	writeCount, err := p.writer.Write(out)
	if err != nil {
		return NewIOError("write", "", err)
	}
	if p.isEncryption {
		if writeCount != readCount+AEADTagLen {
			return ErrWriteMismatch
		}
	} else {
		if writeCount != readCount-AEADTagLen {
			return ErrWriteMismatch
		}
	}

	return nil
}

// run drives the pump to completion.
func (p *blockPump) run() error {
	for p.StepType() == StepNormal {
		if err := p.Step(); err != nil {
			return err
		}
	}
	return p.Finalize()
}
