// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package try

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func renderPage(page string, returned error) (err error) {
	defer Recover(&err)

	err = returned
	if page == "" {
		panic("empty page name")
	}
	if page == "broken" {
		panic(io.ErrUnexpectedEOF)
	}
	return err
}

func TestRecover(t *testing.T) {
	t.Run("will return a PanicError", func(t *testing.T) {
		t.Run("if a non-error value is panicked", func(t *testing.T) {
			err := renderPage("", nil)

			var perr PanicError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			if !assert.Equal(t, "empty page name", perr.Value) {
				return
			}
			if !assert.Contains(t, perr.Error(), "empty page name") {
				return
			}
			if !assert.Nil(t, perr.Unwrap()) {
				return
			}
		})

		t.Run("if an error is panicked", func(t *testing.T) {
			err := renderPage("broken", nil)

			var perr PanicError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			if !assert.ErrorIs(t, err, io.ErrUnexpectedEOF) {
				return
			}
		})
	})

	t.Run("will join the panic with the existing error", func(t *testing.T) {
		notFound := errors.New("page not found")

		err := renderPage("broken", notFound)
		if !assert.ErrorIs(t, err, notFound) {
			return
		}
		if !assert.ErrorIs(t, err, io.ErrUnexpectedEOF) {
			return
		}
	})

	t.Run("will leave the error untouched", func(t *testing.T) {
		t.Run("if nothing panics", func(t *testing.T) {
			notFound := errors.New("page not found")

			if !assert.Nil(t, renderPage("index", nil)) {
				return
			}
			if !assert.Equal(t, notFound, renderPage("index", notFound)) {
				return
			}
		})
	})
}

type dataFile struct {
	io.Reader
	closeErr error
	closed   bool
}

func (f *dataFile) Close() error {
	f.closed = true
	return f.closeErr
}

func readDataFile(r io.Reader) (s string, err error) {
	defer Close(&err, r)

	b, err := io.ReadAll(r)
	return string(b), err
}

func TestClose(t *testing.T) {
	readErr := errors.New("failed to read")
	closeErr := errors.New("failed to close")

	testCases := []struct {
		Name     string
		Reader   io.Reader
		CloseErr error
		Is       []error
		Closed   bool
	}{
		{
			Name:   "will close the reader after a successful read",
			Reader: strings.NewReader(`{"title":"Hi"}`),
			Closed: true,
		},
		{
			Name:     "will return a CloseError if only closing fails",
			Reader:   strings.NewReader(`{"title":"Hi"}`),
			CloseErr: closeErr,
			Is:       []error{closeErr},
			Closed:   true,
		},
		{
			Name:     "will join a failed close with a failed read",
			Reader:   io.MultiReader(strings.NewReader("{"), readerFunc(func([]byte) (int, error) { return 0, readErr })),
			CloseErr: closeErr,
			Is:       []error{readErr, closeErr},
			Closed:   true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			f := &dataFile{Reader: testCase.Reader, closeErr: testCase.CloseErr}

			_, err := readDataFile(f)
			if !assert.Equal(t, testCase.Closed, f.closed) {
				return
			}
			if len(testCase.Is) == 0 {
				assert.Nil(t, err)
				return
			}
			for _, target := range testCase.Is {
				if !assert.ErrorIs(t, err, target) {
					return
				}
			}
			if testCase.CloseErr == nil {
				return
			}

			var cerr CloseError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.Contains(t, cerr.Error(), "failed to close") {
				return
			}
		})
	}

	t.Run("will ignore values which are not an io.Closer", func(t *testing.T) {
		s, err := readDataFile(strings.NewReader("hello"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "hello", s) {
			return
		}
	})
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) {
	return f(b)
}
