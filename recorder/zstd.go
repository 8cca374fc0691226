package recorder

import (
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
)

// Variables to allow whitebox mocking for testing error conditions.
var (
	osPipe      = os.Pipe
	zstdCommand = "zstd"
)

type waitingWriteCloser struct {
	io.WriteCloser
	wg *sync.WaitGroup
}

func (w waitingWriteCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	w.wg.Wait()
	return nil
}

// newZstdReader creates a ReadCloser piped through an external zstd
// decompression process reading filename, for cmd/uavnode-dump.
func newZstdReader(filename string) (io.ReadCloser, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	pipeR, pipeW, err := osPipe()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(zstdCommand, "-d", "-c", filename)
	cmd.Stdout = pipeW

	go func() {
		if err := cmd.Run(); err != nil {
			log.Println("recorder: zstd decompress error for", filename, ":", err)
		}
		pipeW.Close()
	}()

	return pipeR, nil
}

// newZstdWriter creates a WriteCloser piped through an external zstd
// process writing to filename. Closing it waits for the compressor to
// finish flushing to disk.
func newZstdWriter(filename string) (io.WriteCloser, error) {
	var wg sync.WaitGroup
	wg.Add(1)
	pipeR, pipeW, err := osPipe()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(zstdCommand)
	cmd.Stdin = pipeR
	cmd.Stdout = f

	go func() {
		if err := cmd.Run(); err != nil {
			log.Println("recorder: zstd error for", filename, ":", err)
		}
		pipeR.Close()
		wg.Done()
	}()

	return waitingWriteCloser{pipeW, &wg}, nil
}
