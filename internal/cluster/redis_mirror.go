package cluster

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/rs/zerolog/log"
)

const (
	onlineHashKey = "presence:online"
	statusChannel = "presence:status"
	statusOnline  = "online"
	statusOffline = "offline"
)

// decrOnline drops the node count and removes the field once it reaches zero
// in one step, so a concurrent HINCRBY from another node cannot be deleted.
var decrOnline = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`)

// StatusMessage is published on every cluster-wide presence edge.
type StatusMessage struct {
	UserID int    `json:"userId"`
	Status string `json:"status"`
	Node   string `json:"node"`
}

// RedisMirror mirrors local 0<->1 presence edges into Redis so several
// processes can share one view of who is online. The hash counts, per user,
// how many nodes currently hold a connection for them.
type RedisMirror struct {
	client *redis.Client
	node   string
}

// NewRedisMirror connects to Redis. The caller owns Close.
func NewRedisMirror(addr, password string, db int, node string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info().Str("addr", addr).Str("node", node).Msg("redis presence mirror connected")
	return &RedisMirror{client: client, node: node}, nil
}

// UserOnline records that this node gained the user's first connection.
func (m *RedisMirror) UserOnline(ctx context.Context, userID int) {
	field := strconv.Itoa(userID)
	n, err := m.client.WithContext(ctx).HIncrBy(onlineHashKey, field, 1).Result()
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("redis mirror online failed")
		return
	}
	if n == 1 {
		m.publish(ctx, userID, statusOnline)
	}
}

// UserOffline records that this node lost the user's last connection.
func (m *RedisMirror) UserOffline(ctx context.Context, userID int) {
	res, err := decrOnline.Run(m.client.WithContext(ctx), []string{onlineHashKey}, strconv.Itoa(userID)).Result()
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("redis mirror offline failed")
		return
	}
	if n, ok := res.(int64); ok && n <= 0 {
		m.publish(ctx, userID, statusOffline)
	}
}

// OnlineCount returns the number of users online on any node.
func (m *RedisMirror) OnlineCount(ctx context.Context) (int, error) {
	n, err := m.client.WithContext(ctx).HLen(onlineHashKey).Result()
	return int(n), err
}

func (m *RedisMirror) publish(ctx context.Context, userID int, status string) {
	body, err := json.Marshal(StatusMessage{UserID: userID, Status: status, Node: m.node})
	if err != nil {
		return
	}
	if err := m.client.WithContext(ctx).Publish(statusChannel, body).Err(); err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("redis mirror publish failed")
	}
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
