package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// redisError is an error reply sent by the server. The connection stays usable after one.
type redisError string

func (e redisError) Error() string { return "redis: " + string(e) }

var errMalformedReply = errors.New("redis: malformed reply")

// appendCommand encodes args as a RESP array of bulk strings.
func appendCommand(buf []byte, args ...string) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// readReply decodes one RESP2 reply: string (simple), int64, []byte or nil (bulk), []any (array).
// Error replies are returned as redisError.
func readReply(r *bufio.Reader) (any, error) {
	kind, body, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	switch kind {
	case '+':
		return body, nil
	case '-':
		return nil, redisError(body)
	case ':':
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer %q", errMalformedReply, body)
		}
		return n, nil
	case '$':
		size, err := strconv.Atoi(body)
		if err != nil || size < -1 {
			return nil, fmt.Errorf("%w: bulk length %q", errMalformedReply, body)
		}
		if size == -1 {
			return nil, nil
		}
		payload := make([]byte, size+2)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		if payload[size] != '\r' || payload[size+1] != '\n' {
			return nil, fmt.Errorf("%w: bulk terminator", errMalformedReply)
		}
		return payload[:size], nil
	case '*':
		count, err := strconv.Atoi(body)
		if err != nil || count < -1 {
			return nil, fmt.Errorf("%w: array length %q", errMalformedReply, body)
		}
		if count == -1 {
			return nil, nil
		}
		items := make([]any, count)
		for i := range items {
			if items[i], err = readReply(r); err != nil {
				return nil, err
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: type byte %q", errMalformedReply, kind)
	}
}

func readHeader(r *bufio.Reader) (byte, string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, "", err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return 0, "", fmt.Errorf("%w: header %q", errMalformedReply, line)
	}
	return line[0], line[1 : len(line)-2], nil
}
