package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Reader splits the upward stream into whitespace-delimited tokens.
// Once it reports an error it stays at end of stream.
type Reader struct {
	s *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &Reader{s: s}
}

// Token blocks until the next token arrives. field names the value being
// read and ends up in the returned *ProtocolError.
func (r *Reader) Token(field string) (string, error) {
	if !r.s.Scan() {
		err := r.s.Err()
		if err == nil {
			err = ErrStreamClosed
		}
		return "", &ProtocolError{Field: field, Err: err}
	}
	return r.s.Text(), nil
}

func (r *Reader) Int(field string) (int, error) {
	tok, err := r.Token(field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ProtocolError{Field: field, Err: fmt.Errorf("%w: %q", ErrInvalidInteger, tok)}
	}
	return n, nil
}
