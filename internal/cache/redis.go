package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultRedisTimeout   = 5 * time.Second
	defaultRedisKeyPrefix = "livecss:"
)

// RedisConfig holds the connection settings from cache.redis.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
	// KeyPrefix namespaces every key so several installations can share one server.
	KeyPrefix string
}

// RedisClient is a single-connection RESP2 client covering the commands used by the snippet
// slot and the rate limiter. Commands are serialised by a mutex; an I/O or protocol failure
// drops the connection and the next call redials.
type RedisClient struct {
	cfg RedisConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewRedisClient dials eagerly so a bad address or credentials fail at startup.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultRedisKeyPrefix
	}

	client := &RedisClient{cfg: cfg}

	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.connectLocked(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// Close closes the connection. The client redials on its next command.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.reader = nil, nil
	return err
}

// Ping verifies the server answers.
func (c *RedisClient) Ping(ctx context.Context) error {
	reply, err := c.do(ctx, "PING")
	if err != nil {
		return err
	}
	if s, _ := reply.(string); s != "PONG" {
		return fmt.Errorf("redis: unexpected PING reply %v", reply)
	}
	return nil
}

// Get returns the value stored under key; ok is false when the key is absent.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply, err := c.do(ctx, "GET", c.key(key))
	if err != nil {
		return nil, false, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("redis: GET returned %T", reply)
	}
}

// Set stores value. A non-positive ttl stores it without expiry and clears any previous one.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", c.key(key), string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	_, err := c.do(ctx, args...)
	return err
}

// Delete removes keys; missing keys are ignored.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := append(make([]string, 0, len(keys)+1), "DEL")
	for _, key := range keys {
		args = append(args, c.key(key))
	}
	_, err := c.do(ctx, args...)
	return err
}

// IncrementWithTTL bumps a fixed-window counter and returns its value and remaining window.
// INCR and PTTL travel in one round trip; the expiry is attached only when the key has none.
func (c *RedisClient) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	key = c.key(key)

	replies, err := c.pipeline(ctx, []string{"INCR", key}, []string{"PTTL", key})
	if err != nil {
		return 0, 0, err
	}
	count, ok := replies[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("redis: INCR returned %T", replies[0])
	}

	if ttl, _ := replies[1].(int64); ttl > 0 {
		return count, time.Duration(ttl) * time.Millisecond, nil
	}
	if _, err := c.do(ctx, "PEXPIRE", key, strconv.FormatInt(window.Milliseconds(), 10)); err != nil {
		return 0, 0, err
	}
	return count, window, nil
}

func (c *RedisClient) key(key string) string {
	if strings.HasPrefix(key, c.cfg.KeyPrefix) {
		return key
	}
	return c.cfg.KeyPrefix + key
}

func (c *RedisClient) do(ctx context.Context, args ...string) (any, error) {
	replies, err := c.pipeline(ctx, args)
	if err != nil {
		return nil, err
	}
	return replies[0], nil
}

// pipeline writes every command before reading the replies. A server error reply is returned
// after the remaining replies are drained, so the connection stays in sync.
func (c *RedisClient) pipeline(ctx context.Context, commands ...[]string) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	replies, err := exchange(c.conn, c.reader, c.deadline(ctx), commands)
	var serverErr redisError
	if err != nil && !errors.As(err, &serverErr) {
		c.dropLocked()
	}
	return replies, err
}

func (c *RedisClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var conn net.Conn
	var err error
	if c.cfg.TLS {
		conn, err = (&tls.Dialer{}).DialContext(dialCtx, "tcp", c.cfg.Address)
	} else {
		conn, err = (&net.Dialer{}).DialContext(dialCtx, "tcp", c.cfg.Address)
	}
	if err != nil {
		return fmt.Errorf("redis: dial %s: %w", c.cfg.Address, err)
	}

	reader := bufio.NewReader(conn)
	if handshake := c.handshakeCommands(); len(handshake) > 0 {
		if _, err := exchange(conn, reader, c.deadline(dialCtx), handshake); err != nil {
			_ = conn.Close()
			return fmt.Errorf("redis: handshake: %w", err)
		}
	}

	c.conn, c.reader = conn, reader
	return nil
}

func (c *RedisClient) handshakeCommands() [][]string {
	var commands [][]string
	switch {
	case c.cfg.Username != "":
		commands = append(commands, []string{"AUTH", c.cfg.Username, c.cfg.Password})
	case c.cfg.Password != "":
		commands = append(commands, []string{"AUTH", c.cfg.Password})
	}
	if c.cfg.DB > 0 {
		commands = append(commands, []string{"SELECT", strconv.Itoa(c.cfg.DB)})
	}
	return commands
}

func (c *RedisClient) deadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(c.cfg.Timeout)
}

func (c *RedisClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.reader = nil, nil
}

func exchange(conn net.Conn, reader *bufio.Reader, deadline time.Time, commands [][]string) ([]any, error) {
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	var buf []byte
	for _, command := range commands {
		buf = appendCommand(buf, command...)
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, err
	}

	replies := make([]any, len(commands))
	var firstServerErr error
	for i := range commands {
		reply, err := readReply(reader)
		var serverErr redisError
		switch {
		case errors.As(err, &serverErr):
			if firstServerErr == nil {
				firstServerErr = err
			}
		case err != nil:
			return nil, err
		}
		replies[i] = reply
	}
	if firstServerErr != nil {
		return replies, firstServerErr
	}
	return replies, nil
}
