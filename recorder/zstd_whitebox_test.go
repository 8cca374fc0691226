package recorder

import (
	"errors"
	"io/ioutil"
	"os"
	"testing"
)

func TestNewZstdWriterErrorOnOsPipe(t *testing.T) {
	osPipe = func() (*os.File, *os.File, error) {
		return nil, nil, errors.New("error for testing")
	}
	defer func() { osPipe = os.Pipe }()

	_, err := newZstdWriter("file")
	if err == nil {
		t.Error("expected a failure when os.Pipe fails")
	}
}

func TestNewZstdWriterErrorOnUncreatableFile(t *testing.T) {
	_, err := newZstdWriter("/this/file/is/uncreateable")
	if err == nil {
		t.Error("expected an error on an uncreateable file")
	}
}

func TestNewZstdWriterDoubleCloseErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "TestRecorderZstd")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	wc, err := newZstdWriter(dir + "/file.zst")
	if err != nil {
		t.Fatalf("newZstdWriter: %v", err)
	}
	if err := wc.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := wc.Close(); err == nil {
		t.Error("closing the pipe twice should fail")
	}
}
